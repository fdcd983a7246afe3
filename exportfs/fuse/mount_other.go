//go:build !(linux || darwin)

package fuse

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/jeffh/ninefs/exportfs/winfs"
	"github.com/jeffh/ninefs/ninep"
)

type Config struct {
	FsName string
	Chatty bool
	Logger *slog.Logger
}

func MountAndServe(ctx context.Context, ops winfs.Operations, mountpoint string, cfg Config) error {
	return fmt.Errorf("%w: fuse mounts on %s", ninep.ErrUnsupported, runtime.GOOS)
}
