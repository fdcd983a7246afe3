package winfs

import (
	"errors"

	"github.com/jeffh/ninefs/ninep"
)

var remoteErrnos = map[ninep.Errno]Errno{
	ninep.ENOENT:       ERROR_FILE_NOT_FOUND,
	ninep.EACCES:       ERROR_ACCESS_DENIED,
	ninep.EPERM:        ERROR_ACCESS_DENIED,
	ninep.EISDIR:       ERROR_ACCESS_DENIED,
	ninep.EEXIST:       ERROR_ALREADY_EXISTS,
	ninep.ENOTDIR:      ERROR_DIRECTORY,
	ninep.ENOTEMPTY:    ERROR_DIR_NOT_EMPTY,
	ninep.ENOSPC:       ERROR_DISK_FULL,
	ninep.EROFS:        ERROR_WRITE_PROTECT,
	ninep.ENAMETOOLONG: ERROR_FILENAME_EXCED_RANGE,
	ninep.EBADF:        ERROR_INVALID_HANDLE,
	ninep.ENOSYS:       ERROR_NOT_SUPPORTED,
	ninep.ENOTCONN:     ERROR_NOT_READY,
}

// MapError converts a failure into a local error code. Remote failures
// are classified by their errno; anything unrecognised lands in
// ERROR_INVALID_PARAMETER.
func MapError(err error) Errno {
	if err == nil {
		return ERROR_SUCCESS
	}
	var errno Errno
	if errors.As(err, &errno) {
		return errno
	}
	if errors.Is(err, ErrEncoding) {
		return ERROR_NO_UNICODE_TRANSLATION
	}
	_, remote := ninep.LastError(err)
	if e, ok := remoteErrnos[remote]; ok {
		return e
	}
	return ERROR_INVALID_PARAMETER
}
