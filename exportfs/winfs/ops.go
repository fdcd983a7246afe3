package winfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jeffh/ninefs/ninep"
)

// Operations is the callback table a filesystem driver invokes. Names are
// local UTF-16 paths rooted at the mount. Every method returns
// ERROR_SUCCESS or the failure's Win32 code.
type Operations interface {
	CreateFile(ctx context.Context, name []uint16, access AccessMask, disposition CreateDisposition, fc *FileContext) Errno
	OpenDirectory(ctx context.Context, name []uint16, fc *FileContext) Errno
	CreateDirectory(ctx context.Context, name []uint16, fc *FileContext) Errno
	Cleanup(ctx context.Context, name []uint16, fc *FileContext) Errno
	CloseFile(ctx context.Context, name []uint16, fc *FileContext) Errno
	ReadFile(ctx context.Context, name []uint16, buf []byte, offset int64, fc *FileContext) (int, Errno)
	WriteFile(ctx context.Context, name []uint16, buf []byte, offset int64, fc *FileContext) (int, Errno)
	FlushFileBuffers(ctx context.Context, name []uint16, fc *FileContext) Errno
	GetFileInformation(ctx context.Context, name []uint16, out *FileInformation, fc *FileContext) Errno
	FindFiles(ctx context.Context, name []uint16, fill func(*FindData), fc *FileContext) Errno
	SetFileAttributes(ctx context.Context, name []uint16, attrs FileAttribute, fc *FileContext) Errno
	SetFileTime(ctx context.Context, name []uint16, creation, access, write *Filetime, fc *FileContext) Errno
	DeleteFile(ctx context.Context, name []uint16, fc *FileContext) Errno
	DeleteDirectory(ctx context.Context, name []uint16, fc *FileContext) Errno
	MoveFile(ctx context.Context, name, newName []uint16, replaceIfExisting bool, fc *FileContext) Errno
	SetEndOfFile(ctx context.Context, name []uint16, length int64, fc *FileContext) Errno
	SetAllocationSize(ctx context.Context, name []uint16, length int64, fc *FileContext) Errno
	LockFile(ctx context.Context, name []uint16, offset, length int64, fc *FileContext) Errno
	UnlockFile(ctx context.Context, name []uint16, offset, length int64, fc *FileContext) Errno
	Unmount(ctx context.Context) Errno
}

const (
	defaultFilePerm ninep.Mode = 0666
	defaultDirPerm  ninep.Mode = ninep.M_DIR | 0777
)

// FileSystem translates driver callbacks into remote requests.
type FileSystem struct {
	s *Session
}

var _ Operations = (*FileSystem)(nil)

func New(s *Session) *FileSystem { return &FileSystem{s: s} }

func (fs *FileSystem) Session() *Session { return fs.s }

// prepare resolves the remote client and path for an operation.
func (fs *FileSystem) prepare(op string, name []uint16) (ninep.Client, string, Errno) {
	path, err := fs.s.codec.ToRemote(name)
	if err != nil {
		fs.s.tracef(op+".encode.failed", slog.String("error", err.Error()))
		return nil, "", MapError(err)
	}
	clt, err := fs.s.Client()
	if err != nil {
		fs.s.tracef(op+".unmounted", slog.String("path", path))
		return nil, path, MapError(err)
	}
	fs.s.tracef(op, slog.String("path", path))
	return clt, path, ERROR_SUCCESS
}

func (fs *FileSystem) fail(op, path string, err error) Errno {
	errno := MapError(err)
	if fs.s.debug {
		msg, remote := ninep.LastError(err)
		fs.s.logger.Debug(op+".failed",
			slog.String("path", path),
			slog.String("error", msg),
			slog.Uint64("errno", uint64(remote)),
			slog.Uint64("code", uint64(errno)))
	}
	return errno
}

func openMode(access AccessMask, disposition CreateDisposition) ninep.OpenMode {
	var mode ninep.OpenMode
	switch rd, wr := access.readable(), access.writable(); {
	case rd && wr:
		mode = ninep.ORDWR
	case wr:
		mode = ninep.OWRITE
	default:
		mode = ninep.OREAD
	}
	if disposition.truncates() {
		mode |= ninep.OTRUNC
	}
	return mode
}

func (fs *FileSystem) CreateFile(ctx context.Context, name []uint16, access AccessMask, disposition CreateDisposition, fc *FileContext) Errno {
	const op = "winfs.createfile"
	clt, path, errno := fs.prepare(op, name)
	if !errno.Ok() {
		return errno
	}
	mode := openMode(access, disposition)
	fs.s.tracef(op+".mode", slog.String("path", path), slog.String("mode", mode.String()), slog.String("disposition", disposition.String()))

	f, err := clt.Open(path, mode)
	if err == nil && disposition == CREATE_NEW {
		f.Close()
		return ERROR_FILE_EXISTS
	}
	if err != nil && disposition.mayCreate() {
		f, err = clt.Create(path, defaultFilePerm, mode)
	}
	if err != nil {
		return fs.fail(op, path, err)
	}
	if err := fc.attach(f); err != nil {
		f.Close()
		return fs.fail(op, path, ERROR_INVALID_HANDLE)
	}
	return ERROR_SUCCESS
}

func (fs *FileSystem) OpenDirectory(ctx context.Context, name []uint16, fc *FileContext) Errno {
	const op = "winfs.opendirectory"
	clt, path, errno := fs.prepare(op, name)
	if !errno.Ok() {
		return errno
	}
	f, err := clt.Open(path, ninep.OREAD)
	if err != nil {
		return fs.fail(op, path, err)
	}
	if !f.Qid().IsDir() {
		f.Close()
		return ERROR_DIRECTORY
	}
	if err := fc.attach(f); err != nil {
		f.Close()
		return fs.fail(op, path, ERROR_INVALID_HANDLE)
	}
	return ERROR_SUCCESS
}

func (fs *FileSystem) CreateDirectory(ctx context.Context, name []uint16, fc *FileContext) Errno {
	const op = "winfs.createdirectory"
	clt, path, errno := fs.prepare(op, name)
	if !errno.Ok() {
		return errno
	}
	f, err := clt.Create(path, defaultDirPerm, ninep.OREAD)
	if err != nil {
		return fs.fail(op, path, err)
	}
	if err := f.Close(); err != nil {
		fs.s.logger.Warn(op+".close.failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	return ERROR_SUCCESS
}

func (fs *FileSystem) release(op string, name []uint16, fc *FileContext) Errno {
	if err := fc.release(); err != nil {
		fs.s.logger.Warn(op+".close.failed", slog.String("path", LocalString(name)), slog.String("error", err.Error()))
	}
	return ERROR_SUCCESS
}

func (fs *FileSystem) Cleanup(ctx context.Context, name []uint16, fc *FileContext) Errno {
	fs.s.tracef("winfs.cleanup", slog.String("path", LocalString(name)))
	return fs.release("winfs.cleanup", name, fc)
}

func (fs *FileSystem) CloseFile(ctx context.Context, name []uint16, fc *FileContext) Errno {
	fs.s.tracef("winfs.closefile", slog.String("path", LocalString(name)))
	return fs.release("winfs.closefile", name, fc)
}

func (fs *FileSystem) ReadFile(ctx context.Context, name []uint16, buf []byte, offset int64, fc *FileContext) (int, Errno) {
	const op = "winfs.readfile"
	clt, path, errno := fs.prepare(op, name)
	if !errno.Ok() {
		return 0, errno
	}
	if offset < 0 {
		return 0, ERROR_INVALID_PARAMETER
	}
	var n int
	err := withFile(clt, fc, path, ninep.OREAD, func(f ninep.File) error {
		var err error
		n, err = f.ReadAt(buf, offset)
		return err
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fs.fail(op, path, err)
	}
	if n < 0 {
		return 0, fs.fail(op, path, ERROR_INVALID_PARAMETER)
	}
	return n, ERROR_SUCCESS
}

func (fs *FileSystem) WriteFile(ctx context.Context, name []uint16, buf []byte, offset int64, fc *FileContext) (int, Errno) {
	const op = "winfs.writefile"
	clt, path, errno := fs.prepare(op, name)
	if !errno.Ok() {
		return 0, errno
	}
	if offset < 0 {
		return 0, ERROR_INVALID_PARAMETER
	}
	var n int
	err := withFile(clt, fc, path, ninep.OWRITE, func(f ninep.File) error {
		var err error
		n, err = f.WriteAt(buf, offset)
		return err
	})
	if err != nil {
		return 0, fs.fail(op, path, err)
	}
	if n < 0 {
		return 0, fs.fail(op, path, ERROR_INVALID_PARAMETER)
	}
	return n, ERROR_SUCCESS
}

func (fs *FileSystem) FlushFileBuffers(ctx context.Context, name []uint16, fc *FileContext) Errno {
	const op = "winfs.flush"
	clt, path, errno := fs.prepare(op, name)
	if !errno.Ok() {
		return errno
	}
	if err := clt.WriteStat(path, ninep.SyncStat()); err != nil {
		return fs.fail(op, path, err)
	}
	return ERROR_SUCCESS
}

func (fs *FileSystem) GetFileInformation(ctx context.Context, name []uint16, out *FileInformation, fc *FileContext) Errno {
	const op = "winfs.getfileinformation"
	clt, path, errno := fs.prepare(op, name)
	if !errno.Ok() {
		return errno
	}
	st, err := clt.Stat(path)
	if err != nil {
		return fs.fail(op, path, err)
	}
	*out = FileInformationFromStat(st)
	return ERROR_SUCCESS
}

// FindFiles lists a directory through fill. An entry whose name cannot be
// represented locally is skipped; the listing carries on.
func (fs *FileSystem) FindFiles(ctx context.Context, name []uint16, fill func(*FindData), fc *FileContext) Errno {
	const op = "winfs.findfiles"
	clt, path, errno := fs.prepare(op, name)
	if !errno.Ok() {
		return errno
	}
	f, err := clt.Open(path, ninep.OREAD)
	if err != nil {
		return fs.fail(op, path, err)
	}
	defer f.Close()

	for {
		batch, err := f.Dirread()
		for _, st := range batch {
			if st.Name == "" {
				continue
			}
			fd, err := fs.s.codec.FindDataFromStat(st)
			if err != nil {
				fs.s.logger.Debug(op+".elide", slog.String("path", path), slog.String("name", st.Name), slog.String("error", err.Error()))
				continue
			}
			fill(&fd)
		}
		if err != nil {
			return fs.fail(op, path, err)
		}
		if len(batch) == 0 {
			break
		}
	}
	return ERROR_SUCCESS
}

// SetFileAttributes accepts only FILE_ATTRIBUTE_NORMAL, which changes
// nothing. Other attribute bits have no remote counterpart.
func (fs *FileSystem) SetFileAttributes(ctx context.Context, name []uint16, attrs FileAttribute, fc *FileContext) Errno {
	fs.s.tracef("winfs.setfileattributes", slog.String("path", LocalString(name)), slog.Uint64("attrs", uint64(attrs)))
	if attrs&^FILE_ATTRIBUTE_NORMAL != 0 {
		return ERROR_NOT_SUPPORTED
	}
	return ERROR_SUCCESS
}

func (fs *FileSystem) SetFileTime(ctx context.Context, name []uint16, creation, access, write *Filetime, fc *FileContext) Errno {
	const op = "winfs.setfiletime"
	if access == nil && write == nil {
		return ERROR_SUCCESS
	}
	clt, path, errno := fs.prepare(op, name)
	if !errno.Ok() {
		return errno
	}
	st := ninep.SyncStat()
	if access != nil {
		st.Atime = access.Unix()
	}
	if write != nil {
		st.Mtime = write.Unix()
	}
	if err := clt.WriteStat(path, st); err != nil {
		return fs.fail(op, path, err)
	}
	return ERROR_SUCCESS
}

func (fs *FileSystem) remove(op string, name []uint16) Errno {
	clt, path, errno := fs.prepare(op, name)
	if !errno.Ok() {
		return errno
	}
	if err := clt.Remove(path); err != nil {
		return fs.fail(op, path, err)
	}
	return ERROR_SUCCESS
}

func (fs *FileSystem) DeleteFile(ctx context.Context, name []uint16, fc *FileContext) Errno {
	return fs.remove("winfs.deletefile", name)
}

func (fs *FileSystem) DeleteDirectory(ctx context.Context, name []uint16, fc *FileContext) Errno {
	return fs.remove("winfs.deletedirectory", name)
}

// MoveFile renames within a directory. The remote side can only change
// the final path element, so moves to another directory are refused. A
// replaced target is set aside first and restored if the rename fails.
func (fs *FileSystem) MoveFile(ctx context.Context, name, newName []uint16, replaceIfExisting bool, fc *FileContext) Errno {
	const op = "winfs.movefile"
	clt, from, errno := fs.prepare(op, name)
	if !errno.Ok() {
		return errno
	}
	to, err := fs.s.codec.ToRemote(newName)
	if err != nil {
		return fs.fail(op, from, err)
	}
	if ninep.Dirname(from) != ninep.Dirname(to) {
		fs.s.tracef(op+".crossdir", slog.String("from", from), slog.String("to", to))
		return ERROR_NOT_SAME_DEVICE
	}
	if from == to {
		return ERROR_SUCCESS
	}
	var aside string
	if st, err := clt.Stat(to); err == nil {
		if !replaceIfExisting {
			return ERROR_ALREADY_EXISTS
		}
		if st.IsDir() {
			return ERROR_ACCESS_DENIED
		}
		if aside, err = fs.setAside(clt, to); err != nil {
			return fs.fail(op, to, err)
		}
	}
	if err := clt.WriteStat(from, ninep.SyncStatWithName(ninep.Basename(to))); err != nil {
		if aside != "" {
			if rerr := clt.WriteStat(aside, ninep.SyncStatWithName(ninep.Basename(to))); rerr != nil {
				fs.s.logger.Error(op+".restore.failed", slog.String("path", aside), slog.String("target", to), slog.String("error", rerr.Error()))
			}
		}
		return fs.fail(op, from, err)
	}
	if aside != "" {
		if err := clt.Remove(aside); err != nil {
			fs.s.logger.Warn(op+".remove.failed", slog.String("path", aside), slog.String("error", err.Error()))
		}
	}
	return ERROR_SUCCESS
}

const maxAsideAttempts = 16

// setAside renames an existing rename target to an unused name in the same
// directory and returns its new path. The target is only removed once the
// rename over it has succeeded.
func (fs *FileSystem) setAside(clt ninep.Client, path string) (string, error) {
	dir, base := ninep.Dirname(path), ninep.Basename(path)
	for i := 0; i < maxAsideAttempts; i++ {
		name := fmt.Sprintf(".%s.ninefs-%d", base, i)
		if _, err := clt.Stat(dir + name); err == nil {
			continue
		}
		if err := clt.WriteStat(path, ninep.SyncStatWithName(name)); err != nil {
			return "", err
		}
		fs.s.tracef("winfs.movefile.aside", slog.String("path", path), slog.String("aside", dir+name))
		return dir + name, nil
	}
	return "", &ninep.Error{Ename: "file already exists", Errno: ninep.EEXIST}
}

func (fs *FileSystem) SetEndOfFile(ctx context.Context, name []uint16, length int64, fc *FileContext) Errno {
	const op = "winfs.setendoffile"
	clt, path, errno := fs.prepare(op, name)
	if !errno.Ok() {
		return errno
	}
	if length < 0 {
		return ERROR_INVALID_PARAMETER
	}
	st := ninep.SyncStat()
	st.Length = uint64(length)
	if err := clt.WriteStat(path, st); err != nil {
		return fs.fail(op, path, err)
	}
	return ERROR_SUCCESS
}

func (fs *FileSystem) SetAllocationSize(ctx context.Context, name []uint16, length int64, fc *FileContext) Errno {
	return ERROR_CALL_NOT_IMPLEMENTED
}

func (fs *FileSystem) LockFile(ctx context.Context, name []uint16, offset, length int64, fc *FileContext) Errno {
	return ERROR_NOT_SUPPORTED
}

func (fs *FileSystem) UnlockFile(ctx context.Context, name []uint16, offset, length int64, fc *FileContext) Errno {
	return ERROR_NOT_SUPPORTED
}

func (fs *FileSystem) Unmount(ctx context.Context) Errno {
	if err := fs.s.Unmount(); err != nil {
		fs.s.logger.Warn("winfs.unmount.failed", slog.String("error", err.Error()))
	}
	return ERROR_SUCCESS
}
