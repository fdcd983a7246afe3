package ninep

import (
	"errors"
	"io/fs"
	"strings"
)

var (
	ErrUnsupported = errors.New("unsupported")
	ErrUnmounted   = errors.New("not mounted")
	ErrBadAddr     = errors.New("bad address")
)

// Errno is a unix errno value as carried by 9P2000.u.
type Errno uint32

const (
	EPERM        Errno = 1
	ENOENT       Errno = 2
	EIO          Errno = 5
	EBADF        Errno = 9
	EACCES       Errno = 13
	EEXIST       Errno = 17
	ENOTDIR      Errno = 20
	EISDIR       Errno = 21
	EINVAL       Errno = 22
	ENOSPC       Errno = 28
	EROFS        Errno = 30
	ENAMETOOLONG Errno = 36
	ENOSYS       Errno = 38
	ENOTEMPTY    Errno = 39
	ENOTCONN     Errno = 107
)

// Error is a failure reported by the remote server.
type Error struct {
	Ename string
	Errno Errno
}

// NewError builds an Error from a server error string, deriving the errno
// from the string when the server did not send one.
func NewError(ename string) *Error {
	return &Error{Ename: ename, Errno: errnoFromEname(ename)}
}

func (e *Error) Error() string { return e.Ename }

func (e *Error) Is(target error) bool {
	switch target {
	case fs.ErrNotExist:
		return e.Errno == ENOENT
	case fs.ErrExist:
		return e.Errno == EEXIST
	case fs.ErrPermission:
		return e.Errno == EACCES || e.Errno == EPERM
	case ErrUnsupported:
		return e.Errno == ENOSYS
	}
	return false
}

// Plan 9 servers report failures as strings. Order matters: earlier
// entries win ("does not exist" must match before "exist").
var enameErrnos = []struct {
	substr string
	errno  Errno
}{
	{"does not exist", ENOENT},
	{"not found", ENOENT},
	{"no such file", ENOENT},
	{"permission denied", EACCES},
	{"operation not permitted", EPERM},
	{"exists", EEXIST},
	{"not a directory", ENOTDIR},
	{"is a directory", EISDIR},
	{"directory not empty", ENOTEMPTY},
	{"no space", ENOSPC},
	{"file system full", ENOSPC},
	{"disk full", ENOSPC},
	{"read-only", EROFS},
	{"read only", EROFS},
	{"name too long", ENAMETOOLONG},
	{"unknown fid", EBADF},
	{"bad fid", EBADF},
	{"not supported", ENOSYS},
	{"not implemented", ENOSYS},
	{"i/o error", EIO},
	{"hungup", ENOTCONN},
	{"hung up", ENOTCONN},
}

func errnoFromEname(ename string) Errno {
	s := strings.ToLower(ename)
	for _, e := range enameErrnos {
		if strings.Contains(s, e.substr) {
			return e.errno
		}
	}
	return 0
}

// LastError returns the message and errno of a client failure. The errno
// is 0 when nothing more specific than "failed" is known.
func LastError(err error) (string, Errno) {
	if err == nil {
		return "", 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Ename, e.Errno
	}
	switch {
	case errors.Is(err, ErrUnmounted):
		return err.Error(), ENOTCONN
	case errors.Is(err, ErrUnsupported), errors.Is(err, errors.ErrUnsupported):
		return err.Error(), ENOSYS
	case errors.Is(err, fs.ErrNotExist):
		return err.Error(), ENOENT
	case errors.Is(err, fs.ErrExist):
		return err.Error(), EEXIST
	case errors.Is(err, fs.ErrPermission):
		return err.Error(), EACCES
	case errors.Is(err, fs.ErrClosed):
		return err.Error(), EBADF
	case errors.Is(err, fs.ErrInvalid):
		return err.Error(), EINVAL
	}
	return err.Error(), errnoFromEname(err.Error())
}
