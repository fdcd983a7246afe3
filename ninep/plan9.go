package ninep

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sync"

	"9fans.net/go/plan9"
	"9fans.net/go/plan9/client"
)

const (
	VERSION_9P2000  = "9P2000"
	VERSION_9P2000u = "9P2000.u"
)

type MountConfig struct {
	Addr     string
	Version  string // VERSION_9P2000 or VERSION_9P2000u
	User     string
	Aname    string
	AuthAddr string
	Auth     Authorizee // nil skips authentication
	Dialer   Dialer     // defaults to TCPDialer
	Logger   *slog.Logger
	// Chatty logs every remote request at debug level.
	Chatty bool
}

// Mount connects to a 9P server and attaches to its file tree.
func Mount(ctx context.Context, cfg MountConfig) (Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := cfg.Dialer
	if d == nil {
		d = &TCPDialer{}
	}
	network, address, err := ParseAddr(cfg.Addr, DefaultPort)
	if err != nil {
		return nil, err
	}

	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		logger.Error("client.dial.failed", slog.String("addr", address), slog.String("error", err.Error()))
		return nil, err
	}
	// the wire client only speaks 9P2000; .u extensions are not negotiated
	if cfg.Version == VERSION_9P2000u {
		logger.Debug("client.version.downgrade", slog.String("requested", cfg.Version), slog.String("using", VERSION_9P2000))
	}
	c, err := client.NewConn(conn)
	if err != nil {
		conn.Close()
		logger.Error("client.version.failed", slog.String("error", err.Error()))
		return nil, toError(err)
	}

	var afid *client.Fid
	if cfg.Auth != nil {
		afid, err = c.Auth(cfg.User, cfg.Aname)
		if err == nil {
			info := AuthInfo{User: cfg.User, Aname: cfg.Aname, Server: cfg.AuthAddr}
			if err = cfg.Auth.Prove(ctx, afid, info); err != nil {
				logger.Error("client.auth.prove.failed", slog.String("error", err.Error()))
				afid.Close()
				c.Close()
				return nil, toError(err)
			}
		} else {
			// servers without authentication refuse Tauth
			logger.Debug("client.auth.skipped", slog.String("error", err.Error()))
			afid = nil
		}
	}

	fsys, err := c.Attach(afid, cfg.User, cfg.Aname)
	if afid != nil {
		afid.Close()
	}
	if err != nil {
		logger.Error("client.attach.failed", slog.String("error", err.Error()))
		c.Close()
		return nil, toError(err)
	}
	logger.Debug("client.attach.ok", slog.String("addr", address), slog.String("user", cfg.User), slog.String("aname", cfg.Aname))

	var log *slog.Logger
	if cfg.Chatty {
		log = logger
	}
	return &plan9Client{conn: c, fsys: fsys, chatty: log}, nil
}

type plan9Client struct {
	conn   *client.Conn
	fsys   *client.Fsys
	chatty *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ Client = (*plan9Client)(nil)

func (c *plan9Client) trace(msg string, attrs ...any) {
	if c.chatty != nil {
		c.chatty.Debug(msg, attrs...)
	}
}

func (c *plan9Client) Open(path string, mode OpenMode) (File, error) {
	c.trace("Topen", slog.String("path", path), slog.String("mode", mode.String()))
	fid, err := c.fsys.Open(path, uint8(mode))
	if err != nil {
		c.trace("Topen.failed", slog.String("path", path), slog.String("error", err.Error()))
		return nil, toError(err)
	}
	return &plan9File{fid: fid, c: c, path: path}, nil
}

func (c *plan9Client) Create(path string, perm Mode, mode OpenMode) (File, error) {
	c.trace("Tcreate", slog.String("path", path), slog.String("perm", perm.String()), slog.String("mode", mode.String()))
	fid, err := c.fsys.Create(path, uint8(mode), plan9.Perm(perm))
	if err != nil {
		c.trace("Tcreate.failed", slog.String("path", path), slog.String("error", err.Error()))
		return nil, toError(err)
	}
	return &plan9File{fid: fid, c: c, path: path}, nil
}

func (c *plan9Client) Stat(path string) (Stat, error) {
	c.trace("Tstat", slog.String("path", path))
	d, err := c.fsys.Stat(path)
	if err != nil {
		c.trace("Tstat.failed", slog.String("path", path), slog.String("error", err.Error()))
		return Stat{}, toError(err)
	}
	return statFromDir(d), nil
}

func (c *plan9Client) WriteStat(path string, s Stat) error {
	c.trace("Twstat", slog.String("path", path), slog.String("stat", s.String()))
	d := dirFromStat(s)
	if err := c.fsys.Wstat(path, &d); err != nil {
		c.trace("Twstat.failed", slog.String("path", path), slog.String("error", err.Error()))
		return toError(err)
	}
	return nil
}

func (c *plan9Client) Remove(path string) error {
	c.trace("Tremove", slog.String("path", path))
	if err := c.fsys.Remove(path); err != nil {
		c.trace("Tremove.failed", slog.String("path", path), slog.String("error", err.Error()))
		return toError(err)
	}
	return nil
}

func (c *plan9Client) Close() error {
	c.closeOnce.Do(func() {
		c.trace("client.close")
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

type plan9File struct {
	fid  *client.Fid
	c    *plan9Client
	path string
}

var _ File = (*plan9File)(nil)

func (f *plan9File) Qid() Qid {
	q := f.fid.Qid()
	return Qid{Type: QidType(q.Type), Version: q.Vers, Path: q.Path}
}

func (f *plan9File) ReadAt(p []byte, off int64) (int, error) {
	f.c.trace("Tread", slog.String("path", f.path), slog.Int64("offset", off), slog.Int("count", len(p)))
	n, err := f.fid.ReadAt(p, off)
	if err != nil && err != io.EOF {
		return n, toError(err)
	}
	return n, err
}

func (f *plan9File) WriteAt(p []byte, off int64) (int, error) {
	f.c.trace("Twrite", slog.String("path", f.path), slog.Int64("offset", off), slog.Int("count", len(p)))
	n, err := f.fid.WriteAt(p, off)
	if err != nil {
		return n, toError(err)
	}
	return n, nil
}

func (f *plan9File) Dirread() ([]Stat, error) {
	f.c.trace("Tread.dir", slog.String("path", f.path))
	buf := make([]byte, statMax)
	n, err := f.fid.Read(buf)
	if n == 0 && err == io.EOF {
		return nil, nil
	} else if err != nil && err != io.EOF {
		return nil, toError(err)
	}
	stats, err := unpackStats(buf[:n])
	if err != nil {
		f.c.trace("Tread.dir.malformed", slog.String("path", f.path), slog.Int("decoded", len(stats)), slog.String("error", err.Error()))
	}
	return stats, err
}

// largest directory read requested; one stat record never exceeds it
const statMax = 65535

// unpackStats decodes the entries of one directory read. Entries before a
// malformed one are returned along with the error.
func unpackStats(b []byte) ([]Stat, error) {
	var stats []Stat
	for len(b) > 0 {
		if len(b) < 2 {
			return stats, errBadDirEntry("short size field")
		}
		n := int(binary.LittleEndian.Uint16(b)) + 2
		if len(b) < n {
			return stats, errBadDirEntry("short entry")
		}
		d, err := plan9.UnmarshalDir(b[:n])
		if err != nil {
			return stats, errBadDirEntry(err.Error())
		}
		stats = append(stats, statFromDir(d))
		b = b[n:]
	}
	return stats, nil
}

func errBadDirEntry(reason string) error {
	return &Error{Ename: "malformed directory entry: " + reason, Errno: EIO}
}

func (f *plan9File) Close() error {
	f.c.trace("Tclunk", slog.String("path", f.path))
	return toError(f.fid.Close())
}

func statFromDir(d *plan9.Dir) Stat {
	return Stat{
		Type:   d.Type,
		Dev:    d.Dev,
		Qid:    Qid{Type: QidType(d.Qid.Type), Version: d.Qid.Vers, Path: d.Qid.Path},
		Mode:   Mode(d.Mode),
		Atime:  d.Atime,
		Mtime:  d.Mtime,
		Length: d.Length,
		Name:   d.Name,
		Uid:    d.Uid,
		Gid:    d.Gid,
		Muid:   d.Muid,
	}
}

func dirFromStat(s Stat) plan9.Dir {
	return plan9.Dir{
		Type:   s.Type,
		Dev:    s.Dev,
		Qid:    plan9.Qid{Type: uint8(s.Qid.Type), Vers: s.Qid.Version, Path: s.Qid.Path},
		Mode:   plan9.Perm(s.Mode),
		Atime:  s.Atime,
		Mtime:  s.Mtime,
		Length: s.Length,
		Name:   s.Name,
		Uid:    s.Uid,
		Gid:    s.Gid,
		Muid:   s.Muid,
	}
}

// toError turns wire client failures into *Error so callers see one error
// vocabulary.
func toError(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	var pe plan9.ProtocolError
	if errors.As(err, &pe) {
		return NewError(string(pe))
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &Error{Ename: "connection hung up: " + err.Error(), Errno: ENOTCONN}
	}
	return NewError(err.Error())
}
