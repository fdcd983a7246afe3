package ninep

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type TCPDialer struct {
	Timeout         time.Duration
	KeepAlivePeriod time.Duration
}

func (d *TCPDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout, KeepAlive: -1}
	conn, err := nd.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok && d.KeepAlivePeriod != 0 {
		if err = tcp.SetKeepAlive(true); err != nil {
			conn.Close()
			return nil, err
		}
		if err = tcp.SetKeepAlivePeriod(d.KeepAlivePeriod); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

type TLSDialer struct {
	Dialer Dialer
	Config *tls.Config
}

func (d *TLSDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := d.Dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	cfg := d.Config.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			cfg.ServerName = host
		}
	}
	tc := tls.Client(conn, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tc, nil
}
