package ninep

import (
	"context"
	"io"
)

// Client issues requests against one attached remote file tree. Paths are
// slash separated and relative to the attach root. Implementations must be
// safe for concurrent use.
type Client interface {
	Open(path string, mode OpenMode) (File, error)
	Create(path string, perm Mode, mode OpenMode) (File, error)
	Stat(path string) (Stat, error)
	WriteStat(path string, s Stat) error
	Remove(path string) error
	Close() error
}

// File is an open remote file reference. Close must be called exactly once.
type File interface {
	Qid() Qid

	io.ReaderAt
	io.WriterAt
	io.Closer

	// Dirread returns the next batch of directory entries. An empty batch
	// with a nil error marks the end of the directory. A batch cut short by
	// a bad entry is returned along with the error.
	Dirread() ([]Stat, error)
}

// Facts about the mount an Authorizee may need.
type AuthInfo struct {
	User   string
	Aname  string
	Server string // auth server address, may be empty
}

// Authorizee runs the client side of an authentication exchange over the
// auth file returned by the server.
type Authorizee interface {
	Prove(ctx context.Context, afid io.ReadWriter, info AuthInfo) error
}

// SecretAuth proves identity by writing a shared secret to the auth file.
type SecretAuth struct {
	Secret string
}

var _ Authorizee = (*SecretAuth)(nil)

func (a *SecretAuth) Prove(ctx context.Context, afid io.ReadWriter, info AuthInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := io.WriteString(afid, a.Secret)
	return err
}
