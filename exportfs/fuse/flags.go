//go:build linux || darwin

package fuse

import (
	"path"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/jeffh/ninefs/exportfs/winfs"
)

var unixErrnos = map[winfs.Errno]syscall.Errno{
	winfs.ERROR_FILE_NOT_FOUND:         unix.ENOENT,
	winfs.ERROR_PATH_NOT_FOUND:         unix.ENOENT,
	winfs.ERROR_ACCESS_DENIED:          unix.EACCES,
	winfs.ERROR_INVALID_HANDLE:         unix.EBADF,
	winfs.ERROR_NOT_ENOUGH_MEMORY:      unix.ENOMEM,
	winfs.ERROR_NOT_SAME_DEVICE:        unix.EXDEV,
	winfs.ERROR_WRITE_PROTECT:          unix.EROFS,
	winfs.ERROR_NOT_READY:              unix.ENOTCONN,
	winfs.ERROR_NOT_SUPPORTED:          unix.ENOTSUP,
	winfs.ERROR_FILE_EXISTS:            unix.EEXIST,
	winfs.ERROR_INVALID_PARAMETER:      unix.EINVAL,
	winfs.ERROR_DISK_FULL:              unix.ENOSPC,
	winfs.ERROR_CALL_NOT_IMPLEMENTED:   unix.ENOSYS,
	winfs.ERROR_DIR_NOT_EMPTY:          unix.ENOTEMPTY,
	winfs.ERROR_ALREADY_EXISTS:         unix.EEXIST,
	winfs.ERROR_FILENAME_EXCED_RANGE:   unix.ENAMETOOLONG,
	winfs.ERROR_DIRECTORY:              unix.ENOTDIR,
	winfs.ERROR_NO_UNICODE_TRANSLATION: unix.EILSEQ,
}

// mapErr converts a callback result into the errno returned to the kernel.
func mapErr(errno winfs.Errno, defErr syscall.Errno) syscall.Errno {
	if errno.Ok() {
		return 0
	}
	if e, ok := unixErrnos[errno]; ok {
		return e
	}
	return defErr
}

func accessFor(flags uint32) winfs.AccessMask {
	switch int(flags) & unix.O_ACCMODE {
	case unix.O_WRONLY:
		return winfs.GENERIC_WRITE
	case unix.O_RDWR:
		return winfs.GENERIC_READ | winfs.GENERIC_WRITE
	default:
		return winfs.GENERIC_READ
	}
}

func dispositionFor(flags uint32) winfs.CreateDisposition {
	f := int(flags)
	creat := f&unix.O_CREAT != 0
	trunc := f&unix.O_TRUNC != 0
	switch {
	case creat && f&unix.O_EXCL != 0:
		return winfs.CREATE_NEW
	case creat && trunc:
		return winfs.CREATE_ALWAYS
	case creat:
		return winfs.OPEN_ALWAYS
	case trunc:
		return winfs.TRUNCATE_EXISTING
	default:
		return winfs.OPEN_EXISTING
	}
}

func modeOf(attrs winfs.FileAttribute) uint32 {
	if attrs.IsDir() {
		return unix.S_IFDIR | 0755
	}
	return unix.S_IFREG | 0644
}

// childPath joins an entry name onto its parent directory. The driver
// treats a backslash as a separator, so names holding one are refused.
func childPath(parent, name string) (string, syscall.Errno) {
	if strings.ContainsRune(name, '\\') {
		return "", unix.EINVAL
	}
	return path.Join(parent, name), 0
}
