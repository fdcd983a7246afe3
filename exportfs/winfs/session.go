package winfs

import (
	"log/slog"
	"sync"

	"github.com/jeffh/ninefs/ninep"
)

type Options struct {
	// PathTranslation carries spaces as '?' on the remote side.
	PathTranslation bool
	// Debug logs every operation at debug level.
	Debug  bool
	Logger *slog.Logger
}

// Session owns one mount's remote connection. Every operation of a
// FileSystem goes through its Session.
type Session struct {
	codec  NameCodec
	debug  bool
	logger *slog.Logger

	mu     sync.RWMutex
	client ninep.Client
}

func NewSession(clt ninep.Client, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		codec:  NameCodec{Translate: opts.PathTranslation},
		debug:  opts.Debug,
		logger: logger,
		client: clt,
	}
}

func (s *Session) Codec() NameCodec { return s.codec }

// Client returns the remote client, or ninep.ErrUnmounted after Unmount.
func (s *Session) Client() (ninep.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, ninep.ErrUnmounted
	}
	return s.client, nil
}

func (s *Session) Mounted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

// Unmount closes the remote connection. Calling it again does nothing.
func (s *Session) Unmount() error {
	s.mu.Lock()
	clt := s.client
	s.client = nil
	s.mu.Unlock()
	if clt == nil {
		return nil
	}
	s.logger.Debug("winfs.unmount")
	return clt.Close()
}

func (s *Session) tracef(msg string, attrs ...any) {
	if s.debug {
		s.logger.Debug(msg, attrs...)
	}
}
