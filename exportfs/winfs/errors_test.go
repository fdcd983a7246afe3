package winfs

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeffh/ninefs/ninep"
)

func TestMapError(t *testing.T) {
	var tcs = []struct {
		name string
		err  error
		want Errno
	}{
		{"nil", nil, ERROR_SUCCESS},
		{"not found", ninep.NewError("file does not exist"), ERROR_FILE_NOT_FOUND},
		{"os not found", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ENOENT}, ERROR_FILE_NOT_FOUND},
		{"permission", ninep.NewError("permission denied"), ERROR_ACCESS_DENIED},
		{"exists", ninep.NewError("file already exists"), ERROR_ALREADY_EXISTS},
		{"not dir", ninep.NewError("not a directory"), ERROR_DIRECTORY},
		{"not empty", ninep.NewError("directory not empty"), ERROR_DIR_NOT_EMPTY},
		{"full", ninep.NewError("file system full"), ERROR_DISK_FULL},
		{"read only", ninep.NewError("read-only file system"), ERROR_WRITE_PROTECT},
		{"too long", ninep.NewError("name too long"), ERROR_FILENAME_EXCED_RANGE},
		{"bad fid", ninep.NewError("unknown fid"), ERROR_INVALID_HANDLE},
		{"unsupported", fmt.Errorf("%w: chtimes", ninep.ErrUnsupported), ERROR_NOT_SUPPORTED},
		{"unmounted", ninep.ErrUnmounted, ERROR_NOT_READY},
		{"encoding", fmt.Errorf("%w: x", ErrEncoding), ERROR_NO_UNICODE_TRANSLATION},
		{"local code", fmt.Errorf("wrapped: %w", ERROR_DIRECTORY), ERROR_DIRECTORY},
		{"anything else", errors.New("the server is sad"), ERROR_INVALID_PARAMETER},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapError(tc.err))
		})
	}
}

func TestErrnoStatus(t *testing.T) {
	assert.Equal(t, int32(0), ERROR_SUCCESS.Status())
	assert.Equal(t, int32(-2), ERROR_FILE_NOT_FOUND.Status())
	assert.Equal(t, int32(-87), ERROR_INVALID_PARAMETER.Status())
	assert.Equal(t, "file not found", ERROR_FILE_NOT_FOUND.Error())
	assert.Equal(t, "win32 error 9999", Errno(9999).Error())
}
