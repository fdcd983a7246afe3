package ninep

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
)

// Loopback serves a billy.Filesystem through the Client interface, so a
// local directory (or an in-memory tree) can be mounted without a 9P
// server.
type Loopback struct {
	FS   billy.Filesystem
	User string

	m sync.Mutex
}

var _ Client = (*Loopback)(nil)

func NewLoopback(fs billy.Filesystem, user string) *Loopback {
	return &Loopback{FS: fs, User: user}
}

func (l *Loopback) path(p string) string { return "/" + Clean(p) }

func (l *Loopback) Open(path string, mode OpenMode) (File, error) {
	l.m.Lock()
	defer l.m.Unlock()
	p := l.path(path)
	info, err := l.FS.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		if mode.IsWriteable() || mode&OTRUNC != 0 {
			return nil, &Error{Ename: "is a directory", Errno: EISDIR}
		}
		return &loopbackDir{l: l, path: p, qid: l.qid(p, info)}, nil
	}
	f, err := l.FS.OpenFile(p, mode.ToOsFlag(), 0)
	if err != nil {
		return nil, err
	}
	return &loopbackFile{l: l, f: f, qid: l.qid(p, info)}, nil
}

func (l *Loopback) Create(path string, perm Mode, mode OpenMode) (File, error) {
	l.m.Lock()
	defer l.m.Unlock()
	p := l.path(path)
	if p == "/" {
		return nil, &Error{Ename: "file already exists", Errno: EEXIST}
	}
	parent, err := l.FS.Stat(Dirname(p))
	if err != nil {
		return nil, err
	}
	if !parent.IsDir() {
		return nil, &Error{Ename: "not a directory", Errno: ENOTDIR}
	}
	if perm.IsDir() {
		if _, err := l.FS.Stat(p); err == nil {
			return nil, &Error{Ename: "file already exists", Errno: EEXIST}
		}
		if err := l.FS.MkdirAll(p, perm.ToOsMode()); err != nil {
			return nil, err
		}
		info, err := l.FS.Stat(p)
		if err != nil {
			return nil, err
		}
		return &loopbackDir{l: l, path: p, qid: l.qid(p, info)}, nil
	}
	f, err := l.FS.OpenFile(p, mode.ToOsFlag()|os.O_CREATE|os.O_TRUNC, perm.ToOsMode())
	if err != nil {
		return nil, err
	}
	info, err := l.FS.Stat(p)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &loopbackFile{l: l, f: f, qid: l.qid(p, info)}, nil
}

func (l *Loopback) Stat(path string) (Stat, error) {
	l.m.Lock()
	defer l.m.Unlock()
	p := l.path(path)
	info, err := l.FS.Stat(p)
	if err != nil {
		return Stat{}, err
	}
	return l.stat(p, info), nil
}

func (l *Loopback) WriteStat(path string, s Stat) error {
	l.m.Lock()
	defer l.m.Unlock()
	p := l.path(path)
	if _, err := l.FS.Stat(p); err != nil {
		return err
	}
	if s.Length != NoTouchU64 {
		f, err := l.FS.OpenFile(p, os.O_WRONLY, 0)
		if err != nil {
			return err
		}
		err = f.Truncate(int64(s.Length))
		f.Close()
		if err != nil {
			return err
		}
	}
	if s.Mode != Mode(NoTouchU32) {
		ch, ok := l.FS.(billy.Change)
		if !ok {
			return fmt.Errorf("%w: chmod", ErrUnsupported)
		}
		if err := ch.Chmod(p, s.Mode.ToOsMode()); err != nil {
			return err
		}
	}
	if s.Atime != NoTouchU32 || s.Mtime != NoTouchU32 {
		ch, ok := l.FS.(billy.Change)
		if !ok {
			return fmt.Errorf("%w: chtimes", ErrUnsupported)
		}
		info, err := l.FS.Stat(p)
		if err != nil {
			return err
		}
		atime, mtime := info.ModTime(), info.ModTime()
		if s.Atime != NoTouchU32 {
			atime = time.Unix(int64(s.Atime), 0)
		}
		if s.Mtime != NoTouchU32 {
			mtime = time.Unix(int64(s.Mtime), 0)
		}
		if err := ch.Chtimes(p, atime, mtime); err != nil {
			return err
		}
	}
	if s.Name != "" && s.Name != Basename(p) {
		// a wstat rename only changes the final element
		if Basename(s.Name) != s.Name {
			return &Error{Ename: "bad character in file name", Errno: EINVAL}
		}
		to := Dirname(p) + s.Name
		if _, err := l.FS.Stat(to); err == nil {
			return &Error{Ename: "file already exists", Errno: EEXIST}
		}
		if err := l.FS.Rename(p, to); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loopback) Remove(path string) error {
	l.m.Lock()
	defer l.m.Unlock()
	p := l.path(path)
	info, err := l.FS.Stat(p)
	if err != nil {
		return err
	}
	if info.IsDir() {
		entries, err := l.FS.ReadDir(p)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			return &Error{Ename: "directory not empty", Errno: ENOTEMPTY}
		}
	}
	return l.FS.Remove(p)
}

func (l *Loopback) Close() error { return nil }

func (l *Loopback) qid(p string, info os.FileInfo) Qid {
	h := fnv.New64a()
	io.WriteString(h, p)
	q := Qid{Path: h.Sum64(), Version: uint32(info.ModTime().Unix())}
	if info.IsDir() {
		q.Type = QT_DIR
	}
	return q
}

func (l *Loopback) stat(p string, info os.FileInfo) Stat {
	t := uint32(info.ModTime().Unix())
	s := Stat{
		Qid:   l.qid(p, info),
		Mode:  ModeFromOS(info.Mode()),
		Atime: t,
		Mtime: t,
		Name:  info.Name(),
		Uid:   l.User,
		Gid:   l.User,
		Muid:  l.User,
	}
	if !info.IsDir() {
		s.Length = uint64(info.Size())
	}
	return s
}

type loopbackFile struct {
	l   *Loopback
	f   billy.File
	qid Qid
}

func (f *loopbackFile) Qid() Qid { return f.qid }

func (f *loopbackFile) ReadAt(p []byte, off int64) (int, error) {
	f.l.m.Lock()
	defer f.l.m.Unlock()
	return f.f.ReadAt(p, off)
}

func (f *loopbackFile) WriteAt(p []byte, off int64) (int, error) {
	f.l.m.Lock()
	defer f.l.m.Unlock()
	if w, ok := f.f.(io.WriterAt); ok {
		return w.WriteAt(p, off)
	}
	if _, err := f.f.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return f.f.Write(p)
}

func (f *loopbackFile) Dirread() ([]Stat, error) {
	return nil, &Error{Ename: "not a directory", Errno: ENOTDIR}
}

func (f *loopbackFile) Close() error {
	f.l.m.Lock()
	defer f.l.m.Unlock()
	return f.f.Close()
}

type loopbackDir struct {
	l    *Loopback
	path string
	qid  Qid
	done bool
}

func (d *loopbackDir) Qid() Qid { return d.qid }

func (d *loopbackDir) ReadAt(p []byte, off int64) (int, error) {
	return 0, &Error{Ename: "is a directory", Errno: EISDIR}
}

func (d *loopbackDir) WriteAt(p []byte, off int64) (int, error) {
	return 0, &Error{Ename: "is a directory", Errno: EISDIR}
}

func (d *loopbackDir) Dirread() ([]Stat, error) {
	d.l.m.Lock()
	defer d.l.m.Unlock()
	if d.done {
		return nil, nil
	}
	infos, err := d.l.FS.ReadDir(d.path)
	if err != nil {
		return nil, err
	}
	d.done = true
	stats := make([]Stat, 0, len(infos))
	for _, info := range infos {
		stats = append(stats, d.l.stat(d.l.path(d.path+"/"+info.Name()), info))
	}
	return stats, nil
}

func (d *loopbackDir) Close() error { return nil }
