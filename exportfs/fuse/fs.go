//go:build linux || darwin

// Serves winfs operations as a user-space local file system mount (using FUSE)
package fuse

import (
	"context"
	"log/slog"
	"os"
	"syscall"
	"time"

	fs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/jeffh/ninefs/exportfs/winfs"
)

type Config struct {
	// FsName is shown as the mount source, usually the server address.
	FsName string
	// Chatty logs every kernel request go-fuse receives.
	Chatty bool
	Logger *slog.Logger
}

// A helper function for serving a fuse mount point until ctx is canceled or
// the mount is removed from outside. ops.Unmount is called either way.
func MountAndServe(ctx context.Context, ops winfs.Operations, mountpoint string, cfg Config) error {
	b := newBridge(ops, cfg.Logger)
	root := &Dir{node{b: b}}

	timeout := time.Second
	srv, err := fs.Mount(mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName: cfg.FsName,
			Name:   "ninefs",
			Debug:  cfg.Chatty,
		},
		EntryTimeout: &timeout,
		AttrTimeout:  &timeout,
	})
	if err != nil {
		return err
	}
	b.logger.Info("fuse.mounted", slog.String("mountpoint", mountpoint), slog.String("source", cfg.FsName))

	done := make(chan struct{})
	go func() {
		srv.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if err := srv.Unmount(); err != nil {
			b.logger.Error("fuse.unmount.failed", slog.String("mountpoint", mountpoint), slog.String("error", err.Error()))
			return err
		}
		<-done
	}
	b.logger.Info("fuse.unmounted", slog.String("mountpoint", mountpoint))
	ops.Unmount(context.Background())
	return nil
}

type bridge struct {
	ops      winfs.Operations
	logger   *slog.Logger
	uid, gid uint32
}

func newBridge(ops winfs.Operations, logger *slog.Logger) *bridge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &bridge{
		ops:    ops,
		logger: logger,
		uid:    uint32(os.Getuid()),
		gid:    uint32(os.Getgid()),
	}
}

// errno converts a failed callback's code and logs it.
func (b *bridge) errno(op, p string, e winfs.Errno, defErr syscall.Errno) syscall.Errno {
	if e.Ok() {
		return 0
	}
	r := mapErr(e, defErr)
	b.logger.Debug(op+".failed", slog.String("path", p), slog.String("error", e.Error()), slog.String("errno", r.Error()))
	return r
}

func (b *bridge) fillAttr(info *winfs.FileInformation, out *fuse.Attr) {
	out.Ino = info.FileIndex()
	out.Size = info.FileSize()
	out.Blocks = (out.Size + 511) / 512
	out.Mode = modeOf(info.FileAttributes)
	out.Nlink = info.NumberOfLinks
	if out.Nlink == 0 {
		out.Nlink = 1
	}
	atime := info.LastAccessTime.Time()
	mtime := info.LastWriteTime.Time()
	out.SetTimes(&atime, &mtime, &mtime)
	out.Uid = b.uid
	out.Gid = b.gid
}

// node is the shared part of directory and file inodes.
type node struct {
	fs.Inode
	b *bridge
}

// remote returns the node's path below the mount root, starting with a
// slash.
func (n *node) remote() string { return "/" + n.Path(nil) }

func (n *node) child(name string) (string, syscall.Errno) { return childPath(n.remote(), name) }

func (n *node) stat(ctx context.Context, p string, fc *winfs.FileContext) (winfs.FileInformation, winfs.Errno) {
	var info winfs.FileInformation
	errno := n.b.ops.GetFileInformation(ctx, winfs.LocalPath(p), &info, fc)
	return info, errno
}

func (n *node) newChild(ctx context.Context, info *winfs.FileInformation) *fs.Inode {
	stable := fs.StableAttr{
		Mode: modeOf(info.FileAttributes) & syscall.S_IFMT,
		Ino:  info.FileIndex(),
	}
	if info.FileAttributes.IsDir() {
		return n.NewInode(ctx, &Dir{node{b: n.b}}, stable)
	}
	return n.NewInode(ctx, &File{node{b: n.b}}, stable)
}

func (n *node) getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	p := n.remote()
	var fc *winfs.FileContext
	if h, ok := f.(*FileHandle); ok {
		fc = h.fc
	}
	info, errno := n.stat(ctx, p, fc)
	if !errno.Ok() {
		return n.b.errno("fuse.getattr", p, errno, syscall.EIO)
	}
	n.b.fillAttr(&info, &out.Attr)
	return 0
}

func (n *node) setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	p := n.remote()
	name := winfs.LocalPath(p)
	var fc *winfs.FileContext
	if h, ok := f.(*FileHandle); ok {
		fc = h.fc
	}
	if size, ok := in.GetSize(); ok {
		if errno := n.b.ops.SetEndOfFile(ctx, name, int64(size), fc); !errno.Ok() {
			return n.b.errno("fuse.setattr.size", p, errno, syscall.EINVAL)
		}
	}
	var access, write *winfs.Filetime
	if atime, ok := in.GetATime(); ok {
		ft := winfs.FiletimeFromTime(atime)
		access = &ft
	}
	if mtime, ok := in.GetMTime(); ok {
		ft := winfs.FiletimeFromTime(mtime)
		write = &ft
	}
	if errno := n.b.ops.SetFileTime(ctx, name, nil, access, write, fc); !errno.Ok() {
		return n.b.errno("fuse.setattr.times", p, errno, syscall.EINVAL)
	}
	if _, ok := in.GetMode(); ok {
		// permissions have no local counterpart; chmod is accepted and ignored
		n.b.logger.Debug("fuse.setattr.mode.ignored", slog.String("path", p))
	}
	return n.getattr(ctx, f, out)
}

func (n *node) fsync(ctx context.Context) syscall.Errno {
	p := n.remote()
	errno := n.b.ops.FlushFileBuffers(ctx, winfs.LocalPath(p), nil)
	return n.b.errno("fuse.fsync", p, errno, syscall.EIO)
}

///////////////////////////////////////////////////////////

var _ fs.NodeCreater = (*Dir)(nil)
var _ fs.NodeFsyncer = (*Dir)(nil)
var _ fs.NodeGetattrer = (*Dir)(nil)
var _ fs.NodeLookuper = (*Dir)(nil)
var _ fs.NodeMkdirer = (*Dir)(nil)
var _ fs.NodeReaddirer = (*Dir)(nil)
var _ fs.NodeRenamer = (*Dir)(nil)
var _ fs.NodeRmdirer = (*Dir)(nil)
var _ fs.NodeSetattrer = (*Dir)(nil)
var _ fs.NodeUnlinker = (*Dir)(nil)

type Dir struct {
	node
}

func (n *Dir) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	return n.getattr(ctx, f, out)
}

func (n *Dir) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return n.setattr(ctx, f, in, out)
}

func (n *Dir) Fsync(ctx context.Context, f fs.FileHandle, flags uint32) syscall.Errno {
	return n.fsync(ctx)
}

func (n *Dir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	p := n.remote()
	var entries []fuse.DirEntry
	fill := func(fd *winfs.FindData) {
		name := fd.Name()
		if _, e := childPath(p, name); e != 0 {
			n.b.logger.Debug("fuse.readdir.elide", slog.String("path", p), slog.String("name", name))
			return
		}
		entries = append(entries, fuse.DirEntry{
			Mode: modeOf(fd.FileAttributes) & syscall.S_IFMT,
			Name: name,
		})
	}
	if errno := n.b.ops.FindFiles(ctx, winfs.LocalPath(p), fill, nil); !errno.Ok() {
		return nil, n.b.errno("fuse.readdir", p, errno, syscall.EIO)
	}
	return fs.NewListDirStream(entries), 0
}

func (n *Dir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p, e := n.child(name)
	if e != 0 {
		return nil, syscall.ENOENT
	}
	info, errno := n.stat(ctx, p, nil)
	if !errno.Ok() {
		return nil, mapErr(errno, syscall.ENOENT)
	}
	n.b.fillAttr(&info, &out.Attr)
	return n.newChild(ctx, &info), 0
}

func (n *Dir) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p, e := n.child(name)
	if e != 0 {
		return nil, e
	}
	if errno := n.b.ops.CreateDirectory(ctx, winfs.LocalPath(p), nil); !errno.Ok() {
		return nil, n.b.errno("fuse.mkdir", p, errno, syscall.EIO)
	}
	info, errno := n.stat(ctx, p, nil)
	if !errno.Ok() {
		return nil, n.b.errno("fuse.mkdir.stat", p, errno, syscall.EIO)
	}
	n.b.fillAttr(&info, &out.Attr)
	return n.newChild(ctx, &info), 0
}

func (n *Dir) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	p, errno := n.child(name)
	if errno != 0 {
		return nil, nil, 0, errno
	}
	h, e := n.b.open(ctx, p, flags|syscall.O_CREAT)
	if !e.Ok() {
		return nil, nil, 0, n.b.errno("fuse.create", p, e, syscall.EIO)
	}
	if h.fc.IsDirectory() {
		h.Release(ctx)
		return nil, nil, 0, syscall.EISDIR
	}
	info, e := n.stat(ctx, p, h.fc)
	if !e.Ok() {
		h.Release(ctx)
		return nil, nil, 0, n.b.errno("fuse.create.stat", p, e, syscall.EIO)
	}
	n.b.fillAttr(&info, &out.Attr)
	return n.newChild(ctx, &info), h, fuse.FOPEN_DIRECT_IO, 0
}

func (n *Dir) Unlink(ctx context.Context, name string) syscall.Errno {
	p, e := n.child(name)
	if e != 0 {
		return e
	}
	errno := n.b.ops.DeleteFile(ctx, winfs.LocalPath(p), nil)
	return n.b.errno("fuse.unlink", p, errno, syscall.EIO)
}

func (n *Dir) Rmdir(ctx context.Context, name string) syscall.Errno {
	p, e := n.child(name)
	if e != 0 {
		return e
	}
	errno := n.b.ops.DeleteDirectory(ctx, winfs.LocalPath(p), nil)
	return n.b.errno("fuse.rmdir", p, errno, syscall.EIO)
}

// RENAME_NOREPLACE from renameat2(2)
const renameNoReplace = 0x1

func (n *Dir) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	from, e := n.child(name)
	if e != 0 {
		return e
	}
	to, e := childPath("/"+newParent.EmbeddedInode().Path(nil), newName)
	if e != 0 {
		return e
	}
	replace := flags&renameNoReplace == 0
	errno := n.b.ops.MoveFile(ctx, winfs.LocalPath(from), winfs.LocalPath(to), replace, nil)
	return n.b.errno("fuse.rename", from, errno, syscall.EIO)
}

///////////////////////////////////////////////////////////////

var _ fs.NodeFsyncer = (*File)(nil)
var _ fs.NodeGetattrer = (*File)(nil)
var _ fs.NodeOpener = (*File)(nil)
var _ fs.NodeSetattrer = (*File)(nil)

type File struct {
	node
}

func (n *File) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	return n.getattr(ctx, f, out)
}

func (n *File) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return n.setattr(ctx, f, in, out)
}

func (n *File) Fsync(ctx context.Context, f fs.FileHandle, flags uint32) syscall.Errno {
	return n.fsync(ctx)
}

func (n *File) Open(ctx context.Context, flags uint32) (fh fs.FileHandle, fuseFlags uint32, errno syscall.Errno) {
	p := n.remote()
	h, e := n.b.open(ctx, p, flags)
	if !e.Ok() {
		return nil, 0, n.b.errno("fuse.open", p, e, syscall.EIO)
	}
	if h.fc.IsDirectory() {
		h.Release(ctx)
		return nil, 0, syscall.EISDIR
	}
	return h, fuse.FOPEN_DIRECT_IO, 0
}

/////////////////////////////////////////////////////////////////

// FileHandle holds the remote reference opened for one local open.
type FileHandle struct {
	b    *bridge
	path string
	fc   *winfs.FileContext
}

var _ fs.FileFlusher = (*FileHandle)(nil)
var _ fs.FileFsyncer = (*FileHandle)(nil)
var _ fs.FileReader = (*FileHandle)(nil)
var _ fs.FileReleaser = (*FileHandle)(nil)
var _ fs.FileWriter = (*FileHandle)(nil)

func (b *bridge) open(ctx context.Context, p string, flags uint32) (*FileHandle, winfs.Errno) {
	fc := &winfs.FileContext{}
	errno := b.ops.CreateFile(ctx, winfs.LocalPath(p), accessFor(flags), dispositionFor(flags), fc)
	if !errno.Ok() {
		return nil, errno
	}
	return &FileHandle{b: b, path: p, fc: fc}, errno
}

func (h *FileHandle) name() []uint16 { return winfs.LocalPath(h.path) }

func (h *FileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, errno := h.b.ops.ReadFile(ctx, h.name(), dest, off, h.fc)
	if !errno.Ok() {
		return nil, h.b.errno("fuse.read", h.path, errno, syscall.EIO)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *FileHandle) Write(ctx context.Context, data []byte, off int64) (written uint32, errno syscall.Errno) {
	n, e := h.b.ops.WriteFile(ctx, h.name(), data, off, h.fc)
	if !e.Ok() {
		return 0, h.b.errno("fuse.write", h.path, e, syscall.EIO)
	}
	return uint32(n), 0
}

// Flush runs on every close(2) of a descriptor and has nothing to send.
func (h *FileHandle) Flush(ctx context.Context) syscall.Errno { return 0 }

func (h *FileHandle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	errno := h.b.ops.FlushFileBuffers(ctx, h.name(), h.fc)
	return h.b.errno("fuse.fsync", h.path, errno, syscall.EIO)
}

func (h *FileHandle) Release(ctx context.Context) syscall.Errno {
	h.b.ops.Cleanup(ctx, h.name(), h.fc)
	errno := h.b.ops.CloseFile(ctx, h.name(), h.fc)
	return h.b.errno("fuse.release", h.path, errno, syscall.EBADF)
}
