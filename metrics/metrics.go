// Package metrics counts and times filesystem operations with prometheus.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jeffh/ninefs/exportfs/winfs"
)

type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
}

// New registers the operation metrics with reg.
//
// Returns nil if reg is nil, which disables recording.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	return &Metrics{
		ops: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ninefs_operations_total",
				Help: "Total number of filesystem operations by operation and win32 result code",
			},
			[]string{"op", "code"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ninefs_operation_duration_seconds",
				Help:    "Duration of filesystem operations by operation",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"op"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ninefs_bytes_total",
				Help: "Total bytes transferred by direction",
			},
			[]string{"direction"}, // "read", "write"
		),
	}
}

// Record records one finished operation.
func (m *Metrics) Record(op string, start time.Time, errno winfs.Errno) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, strconv.FormatUint(uint64(errno), 10)).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// RecordBytes adds n transferred bytes in the given direction.
func (m *Metrics) RecordBytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytes.WithLabelValues(direction).Add(float64(n))
}

// Instrument wraps ops so every call is recorded. A nil m returns ops
// unchanged.
func Instrument(ops winfs.Operations, m *Metrics) winfs.Operations {
	if m == nil {
		return ops
	}
	return &instrumented{ops: ops, m: m}
}

type instrumented struct {
	ops winfs.Operations
	m   *Metrics
}

var _ winfs.Operations = (*instrumented)(nil)

func (i *instrumented) CreateFile(ctx context.Context, name []uint16, access winfs.AccessMask, disposition winfs.CreateDisposition, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.CreateFile(ctx, name, access, disposition, fc)
	i.m.Record("CreateFile", start, errno)
	return errno
}

func (i *instrumented) OpenDirectory(ctx context.Context, name []uint16, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.OpenDirectory(ctx, name, fc)
	i.m.Record("OpenDirectory", start, errno)
	return errno
}

func (i *instrumented) CreateDirectory(ctx context.Context, name []uint16, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.CreateDirectory(ctx, name, fc)
	i.m.Record("CreateDirectory", start, errno)
	return errno
}

func (i *instrumented) Cleanup(ctx context.Context, name []uint16, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.Cleanup(ctx, name, fc)
	i.m.Record("Cleanup", start, errno)
	return errno
}

func (i *instrumented) CloseFile(ctx context.Context, name []uint16, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.CloseFile(ctx, name, fc)
	i.m.Record("CloseFile", start, errno)
	return errno
}

func (i *instrumented) ReadFile(ctx context.Context, name []uint16, buf []byte, offset int64, fc *winfs.FileContext) (int, winfs.Errno) {
	start := time.Now()
	n, errno := i.ops.ReadFile(ctx, name, buf, offset, fc)
	i.m.Record("ReadFile", start, errno)
	i.m.RecordBytes("read", n)
	return n, errno
}

func (i *instrumented) WriteFile(ctx context.Context, name []uint16, buf []byte, offset int64, fc *winfs.FileContext) (int, winfs.Errno) {
	start := time.Now()
	n, errno := i.ops.WriteFile(ctx, name, buf, offset, fc)
	i.m.Record("WriteFile", start, errno)
	i.m.RecordBytes("write", n)
	return n, errno
}

func (i *instrumented) FlushFileBuffers(ctx context.Context, name []uint16, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.FlushFileBuffers(ctx, name, fc)
	i.m.Record("FlushFileBuffers", start, errno)
	return errno
}

func (i *instrumented) GetFileInformation(ctx context.Context, name []uint16, out *winfs.FileInformation, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.GetFileInformation(ctx, name, out, fc)
	i.m.Record("GetFileInformation", start, errno)
	return errno
}

func (i *instrumented) FindFiles(ctx context.Context, name []uint16, fill func(*winfs.FindData), fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.FindFiles(ctx, name, fill, fc)
	i.m.Record("FindFiles", start, errno)
	return errno
}

func (i *instrumented) SetFileAttributes(ctx context.Context, name []uint16, attrs winfs.FileAttribute, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.SetFileAttributes(ctx, name, attrs, fc)
	i.m.Record("SetFileAttributes", start, errno)
	return errno
}

func (i *instrumented) SetFileTime(ctx context.Context, name []uint16, creation, access, write *winfs.Filetime, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.SetFileTime(ctx, name, creation, access, write, fc)
	i.m.Record("SetFileTime", start, errno)
	return errno
}

func (i *instrumented) DeleteFile(ctx context.Context, name []uint16, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.DeleteFile(ctx, name, fc)
	i.m.Record("DeleteFile", start, errno)
	return errno
}

func (i *instrumented) DeleteDirectory(ctx context.Context, name []uint16, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.DeleteDirectory(ctx, name, fc)
	i.m.Record("DeleteDirectory", start, errno)
	return errno
}

func (i *instrumented) MoveFile(ctx context.Context, name, newName []uint16, replaceIfExisting bool, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.MoveFile(ctx, name, newName, replaceIfExisting, fc)
	i.m.Record("MoveFile", start, errno)
	return errno
}

func (i *instrumented) SetEndOfFile(ctx context.Context, name []uint16, length int64, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.SetEndOfFile(ctx, name, length, fc)
	i.m.Record("SetEndOfFile", start, errno)
	return errno
}

func (i *instrumented) SetAllocationSize(ctx context.Context, name []uint16, length int64, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.SetAllocationSize(ctx, name, length, fc)
	i.m.Record("SetAllocationSize", start, errno)
	return errno
}

func (i *instrumented) LockFile(ctx context.Context, name []uint16, offset, length int64, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.LockFile(ctx, name, offset, length, fc)
	i.m.Record("LockFile", start, errno)
	return errno
}

func (i *instrumented) UnlockFile(ctx context.Context, name []uint16, offset, length int64, fc *winfs.FileContext) winfs.Errno {
	start := time.Now()
	errno := i.ops.UnlockFile(ctx, name, offset, length, fc)
	i.m.Record("UnlockFile", start, errno)
	return errno
}

func (i *instrumented) Unmount(ctx context.Context) winfs.Errno {
	start := time.Now()
	errno := i.ops.Unmount(ctx)
	i.m.Record("Unmount", start, errno)
	return errno
}
