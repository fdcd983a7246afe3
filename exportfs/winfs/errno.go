package winfs

import "fmt"

// Errno is a Win32 error code. The zero value means success. Operations
// return it the way a go-fuse node returns syscall.Errno.
type Errno uint32

const (
	ERROR_SUCCESS                Errno = 0
	ERROR_FILE_NOT_FOUND         Errno = 2
	ERROR_PATH_NOT_FOUND         Errno = 3
	ERROR_ACCESS_DENIED          Errno = 5
	ERROR_INVALID_HANDLE         Errno = 6
	ERROR_NOT_ENOUGH_MEMORY      Errno = 8
	ERROR_NOT_SAME_DEVICE        Errno = 17
	ERROR_WRITE_PROTECT          Errno = 19
	ERROR_NOT_READY              Errno = 21
	ERROR_NOT_SUPPORTED          Errno = 50
	ERROR_FILE_EXISTS            Errno = 80
	ERROR_INVALID_PARAMETER      Errno = 87
	ERROR_DISK_FULL              Errno = 112
	ERROR_CALL_NOT_IMPLEMENTED   Errno = 120
	ERROR_DIR_NOT_EMPTY          Errno = 145
	ERROR_ALREADY_EXISTS         Errno = 183
	ERROR_FILENAME_EXCED_RANGE   Errno = 206
	ERROR_DIRECTORY              Errno = 267
	ERROR_NO_UNICODE_TRANSLATION Errno = 1113
)

var errnoNames = map[Errno]string{
	ERROR_SUCCESS:                "success",
	ERROR_FILE_NOT_FOUND:         "file not found",
	ERROR_PATH_NOT_FOUND:         "path not found",
	ERROR_ACCESS_DENIED:          "access denied",
	ERROR_INVALID_HANDLE:         "invalid handle",
	ERROR_NOT_ENOUGH_MEMORY:      "not enough memory",
	ERROR_NOT_SAME_DEVICE:        "cannot move to a different directory",
	ERROR_WRITE_PROTECT:          "write protected",
	ERROR_NOT_READY:              "device not ready",
	ERROR_NOT_SUPPORTED:          "not supported",
	ERROR_FILE_EXISTS:            "file exists",
	ERROR_INVALID_PARAMETER:      "invalid parameter",
	ERROR_DISK_FULL:              "disk full",
	ERROR_CALL_NOT_IMPLEMENTED:   "call not implemented",
	ERROR_DIR_NOT_EMPTY:          "directory not empty",
	ERROR_ALREADY_EXISTS:         "already exists",
	ERROR_FILENAME_EXCED_RANGE:   "file name too long",
	ERROR_DIRECTORY:              "not a directory",
	ERROR_NO_UNICODE_TRANSLATION: "no mapping for unicode character",
}

func (e Errno) Error() string {
	if s, ok := errnoNames[e]; ok {
		return s
	}
	return fmt.Sprintf("win32 error %d", uint32(e))
}

// Status is the value handed back to the driver: 0 or the negated code.
func (e Errno) Status() int32 { return -int32(e) }

func (e Errno) Ok() bool { return e == ERROR_SUCCESS }
