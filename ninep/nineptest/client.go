// Package nineptest provides an in-memory ninep.Client that records every
// request, for tests of code layered on top of a remote file tree.
package nineptest

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/jeffh/ninefs/ninep"
)

// Call is one request received by Client.
type Call struct {
	Op   string // open, create, stat, wstat, remove, read, write, dirread, clunk
	Path string
	Mode ninep.OpenMode
	Perm ninep.Mode
	Stat ninep.Stat
}

type node struct {
	stat ninep.Stat
	data []byte
}

// Client is a goroutine safe in-memory file tree. The zero value is not
// usable; call New.
type Client struct {
	// Dev is reported as the device of every file.
	Dev uint32

	mu       sync.Mutex
	nodes    map[string]*node
	calls    []Call
	fails    map[string]error
	batches  map[string][][]ninep.Stat
	dirErrs  map[string]error
	open     int
	nextPath uint64
	closed   bool
}

var _ ninep.Client = (*Client)(nil)

func New() *Client {
	c := &Client{
		nodes:   make(map[string]*node),
		fails:   make(map[string]error),
		batches: make(map[string][][]ninep.Stat),
		dirErrs: make(map[string]error),
	}
	c.nodes[""] = &node{stat: c.newStat("/", ninep.M_DIR|0777)}
	return c
}

func key(path string) string { return ninep.Clean(path) }

func failKey(op, path string) string { return op + " " + key(path) }

func notExist() error { return &ninep.Error{Ename: "file does not exist", Errno: ninep.ENOENT} }

func (c *Client) newStat(name string, perm ninep.Mode) ninep.Stat {
	c.nextPath++
	return ninep.Stat{
		Dev:  c.Dev,
		Qid:  ninep.Qid{Type: perm.QidType(), Path: c.nextPath},
		Mode: perm,
		Name: name,
		Uid:  "glenda",
		Gid:  "glenda",
		Muid: "glenda",
	}
}

// AddFile creates or replaces a file, creating missing parent directories.
func (c *Client) AddFile(path string, data []byte) ninep.Stat {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mkdirs(ninep.Dirname(key(path)))
	n := &node{stat: c.newStat(ninep.Basename(key(path)), 0666), data: append([]byte(nil), data...)}
	n.stat.Length = uint64(len(data))
	c.nodes[key(path)] = n
	return n.stat
}

// AddDir creates a directory and any missing parents.
func (c *Client) AddDir(path string) ninep.Stat {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mkdirs(key(path))
	return c.nodes[key(path)].stat
}

func (c *Client) mkdirs(path string) {
	k := key(path)
	if k == "" {
		return
	}
	c.mkdirs(ninep.Dirname(k))
	if _, ok := c.nodes[k]; !ok {
		c.nodes[k] = &node{stat: c.newStat(ninep.Basename(k), ninep.M_DIR|0777)}
	}
}

// SetTimes sets the access and modify times of an existing file.
func (c *Client) SetTimes(path string, atime, mtime uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[key(path)]; ok {
		n.stat.Atime, n.stat.Mtime = atime, mtime
	}
}

// Fail makes every later op on path return err. A nil err clears it.
func (c *Client) Fail(op, path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.fails, failKey(op, path))
	} else {
		c.fails[failKey(op, path)] = err
	}
}

// SetDirBatches scripts the batches Dirread returns for path. An empty
// batch is appended implicitly once the script runs out.
func (c *Client) SetDirBatches(path string, batches ...[]ninep.Stat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches[key(path)] = batches
}

// SetDirError makes the last scripted batch for path come back with err,
// as when a listing is cut short by a bad entry.
func (c *Client) SetDirError(path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirErrs[key(path)] = err
}

func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallsFor returns the recorded calls with the given op.
func (c *Client) CallsFor(op string) []Call {
	var res []Call
	for _, call := range c.Calls() {
		if call.Op == op {
			res = append(res, call)
		}
	}
	return res
}

func (c *Client) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// OpenRefs is the number of file references opened and not yet closed.
func (c *Client) OpenRefs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Client) Data(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[key(path)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}

func (c *Client) Exists(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.nodes[key(path)]
	return ok
}

func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) record(call Call) error {
	c.calls = append(c.calls, call)
	if c.closed {
		return ninep.ErrUnmounted
	}
	return c.fails[failKey(call.Op, call.Path)]
}

func (c *Client) Open(path string, mode ninep.OpenMode) (ninep.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(Call{Op: "open", Path: path, Mode: mode}); err != nil {
		return nil, err
	}
	n, ok := c.nodes[key(path)]
	if !ok {
		return nil, notExist()
	}
	if n.stat.Mode.IsDir() && (mode.IsWriteable() || mode&ninep.OTRUNC != 0) {
		return nil, &ninep.Error{Ename: "is a directory", Errno: ninep.EISDIR}
	}
	if mode&ninep.OTRUNC != 0 {
		n.data = nil
		n.stat.Length = 0
	}
	c.open++
	return &file{c: c, path: key(path), qid: n.stat.Qid}, nil
}

func (c *Client) Create(path string, perm ninep.Mode, mode ninep.OpenMode) (ninep.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(Call{Op: "create", Path: path, Mode: mode, Perm: perm}); err != nil {
		return nil, err
	}
	k := key(path)
	parent, ok := c.nodes[ninep.Clean(ninep.Dirname(k))]
	if k == "" || !ok {
		return nil, notExist()
	}
	if !parent.stat.Mode.IsDir() {
		return nil, &ninep.Error{Ename: "not a directory", Errno: ninep.ENOTDIR}
	}
	if n, ok := c.nodes[k]; ok {
		if n.stat.Mode.IsDir() || perm.IsDir() {
			return nil, &ninep.Error{Ename: "file already exists", Errno: ninep.EEXIST}
		}
		n.data = nil
		n.stat.Length = 0
		c.open++
		return &file{c: c, path: k, qid: n.stat.Qid}, nil
	}
	n := &node{stat: c.newStat(ninep.Basename(k), perm)}
	c.nodes[k] = n
	c.open++
	return &file{c: c, path: k, qid: n.stat.Qid}, nil
}

func (c *Client) Stat(path string) (ninep.Stat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(Call{Op: "stat", Path: path}); err != nil {
		return ninep.Stat{}, err
	}
	n, ok := c.nodes[key(path)]
	if !ok {
		return ninep.Stat{}, notExist()
	}
	return n.stat, nil
}

func (c *Client) WriteStat(path string, s ninep.Stat) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(Call{Op: "wstat", Path: path, Stat: s}); err != nil {
		return err
	}
	k := key(path)
	n, ok := c.nodes[k]
	if !ok {
		return notExist()
	}
	if s.Name != "" && s.Name != n.stat.Name {
		if strings.Contains(s.Name, "/") {
			return &ninep.Error{Ename: "bad character in file name", Errno: ninep.EINVAL}
		}
		to := ninep.Clean(ninep.Dirname(k) + s.Name)
		if _, exists := c.nodes[to]; exists {
			return &ninep.Error{Ename: "file already exists", Errno: ninep.EEXIST}
		}
		c.rename(k, to)
		n.stat.Name = s.Name
	}
	if s.Length != ninep.NoTouchU64 {
		if n.stat.Mode.IsDir() {
			return &ninep.Error{Ename: "is a directory", Errno: ninep.EISDIR}
		}
		data := make([]byte, s.Length)
		copy(data, n.data)
		n.data = data
		n.stat.Length = s.Length
	}
	if s.Mode != ninep.Mode(ninep.NoTouchU32) {
		n.stat.Mode = n.stat.Mode&ninep.M_TYPE | s.Mode&ninep.M_PERM
	}
	if s.Atime != ninep.NoTouchU32 {
		n.stat.Atime = s.Atime
	}
	if s.Mtime != ninep.NoTouchU32 {
		n.stat.Mtime = s.Mtime
	}
	return nil
}

func (c *Client) rename(from, to string) {
	for k, n := range c.nodes {
		if k == from {
			delete(c.nodes, k)
			c.nodes[to] = n
		} else if strings.HasPrefix(k, from+"/") {
			delete(c.nodes, k)
			c.nodes[to+k[len(from):]] = n
		}
	}
}

func (c *Client) Remove(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(Call{Op: "remove", Path: path}); err != nil {
		return err
	}
	k := key(path)
	if _, ok := c.nodes[k]; !ok || k == "" {
		return notExist()
	}
	if len(c.children(k)) > 0 {
		return &ninep.Error{Ename: "directory not empty", Errno: ninep.ENOTEMPTY}
	}
	delete(c.nodes, k)
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Op: "close"})
	c.closed = true
	return nil
}

func (c *Client) children(dir string) []ninep.Stat {
	var res []ninep.Stat
	for k, n := range c.nodes {
		if k != "" && ninep.Clean(ninep.Dirname(k)) == dir {
			res = append(res, n.stat)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

type file struct {
	c      *Client
	path   string
	qid    ninep.Qid
	listed bool
	closed bool
}

func (f *file) Qid() ninep.Qid { return f.qid }

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	if err := f.c.record(Call{Op: "read", Path: f.path}); err != nil {
		return 0, err
	}
	n, ok := f.c.nodes[f.path]
	if !ok {
		return 0, notExist()
	}
	if off >= int64(len(n.data)) {
		return 0, io.EOF
	}
	return copy(p, n.data[off:]), nil
}

func (f *file) WriteAt(p []byte, off int64) (int, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	if err := f.c.record(Call{Op: "write", Path: f.path}); err != nil {
		return 0, err
	}
	n, ok := f.c.nodes[f.path]
	if !ok {
		return 0, notExist()
	}
	if end := off + int64(len(p)); end > int64(len(n.data)) {
		data := make([]byte, end)
		copy(data, n.data)
		n.data = data
	}
	copy(n.data[off:], p)
	n.stat.Length = uint64(len(n.data))
	return len(p), nil
}

func (f *file) Dirread() ([]ninep.Stat, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	if err := f.c.record(Call{Op: "dirread", Path: f.path}); err != nil {
		return nil, err
	}
	if batches, ok := f.c.batches[f.path]; ok {
		if len(batches) == 0 {
			return nil, nil
		}
		f.c.batches[f.path] = batches[1:]
		if len(batches) == 1 && f.c.dirErrs[f.path] != nil {
			return batches[0], f.c.dirErrs[f.path]
		}
		return batches[0], nil
	}
	if f.listed {
		return nil, nil
	}
	f.listed = true
	return f.c.children(f.path), nil
}

func (f *file) Close() error {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	f.c.calls = append(f.c.calls, Call{Op: "clunk", Path: f.path})
	if f.closed {
		return &ninep.Error{Ename: fmt.Sprintf("unknown fid: %s", f.path), Errno: ninep.EBADF}
	}
	f.closed = true
	f.c.open--
	return nil
}
