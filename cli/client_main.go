package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/jeffh/ninefs/exportfs/winfs"
	"github.com/jeffh/ninefs/ninep"
)

// EnvPrefix prefixes the environment variables that mirror each flag,
// e.g. NINEFS_USER or NINEFS_NO_TRANSLATE.
const EnvPrefix = "NINEFS"

// PromptPassword as the -p value reads the password from the terminal.
const PromptPassword = "-"

type ClientConfig struct {
	AuthServer    string `mapstructure:"authserv"`
	Chatty        bool   `mapstructure:"chatty"`
	Debug         bool   `mapstructure:"debug"`
	DriverDebug   bool   `mapstructure:"driver-debug"`
	Password      string `mapstructure:"passwd"`
	NoTranslation bool   `mapstructure:"no-translate"`
	User          string `mapstructure:"user"`
	NoDotU        bool   `mapstructure:"no-dotu"`

	Aname              string `mapstructure:"aname"`
	Local              string `mapstructure:"local"`
	MetricsAddr        string `mapstructure:"metrics-addr"`
	TimeoutInSeconds   int    `mapstructure:"timeout"`
	KeepAliveInSeconds int    `mapstructure:"keepalive"`
	TLS                bool   `mapstructure:"tls"`
	NoColor            bool   `mapstructure:"no-color"`
}

func (c *ClientConfig) SetFlags(f Flags) {
	f.StringVarP(&c.AuthServer, "authserv", "a", "", "Auth server address, defaults to the file server's host on port 567")
	f.BoolVarP(&c.Chatty, "chatty", "c", false, "Log every 9P request and reply")
	f.BoolVarP(&c.Debug, "debug", "d", false, "Log every file system operation and its result")
	f.BoolVarP(&c.DriverDebug, "driver-debug", "D", false, "Enable the mount driver's own debug output")
	f.StringVarP(&c.Password, "passwd", "p", "", "Password to authenticate with; '-' prompts for it")
	f.BoolVarP(&c.NoTranslation, "no-translate", "t", false, "Pass names through unchanged instead of mapping spaces to '?'")
	f.StringVarP(&c.User, "user", "u", "nobody", "Username to attach as")
	f.BoolVarP(&c.NoDotU, "no-dotu", "U", false, "Request plain 9P2000 instead of 9P2000.u; the connection always speaks plain 9P2000, so this only changes debug logging")
	f.StringVarP(&c.Aname, "aname", "", "", "File tree to attach to")
	f.StringVarP(&c.Local, "local", "", "", "Serve this local directory instead of dialing a server")
	f.StringVarP(&c.MetricsAddr, "metrics-addr", "", "", "Serve prometheus metrics on this address, disabled when empty")
	f.IntVarP(&c.TimeoutInSeconds, "timeout", "", 10, "Timeout in seconds for connecting to the server")
	f.IntVarP(&c.KeepAliveInSeconds, "keepalive", "", 0, "TCP keep-alive period in seconds, disabled when 0")
	f.BoolVarP(&c.TLS, "tls", "", false, "Connect to the server over TLS")
	f.BoolVarP(&c.NoColor, "no-color", "", false, "Disable colored error output")
}

// LoadConfig resolves the configuration from parsed flags, environment
// variables and an optional config file, in that order of precedence.
func LoadConfig(fs *pflag.FlagSet, configFile string) (*ClientConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Logger returns a stderr logger at debug level when any of the
// debugging switches is on.
func (c *ClientConfig) Logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if c.Chatty || c.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (c *ClientConfig) SessionOptions(logger *slog.Logger) winfs.Options {
	return winfs.Options{
		PathTranslation: !c.NoTranslation,
		Debug:           c.Debug,
		Logger:          logger,
	}
}

func (c *ClientConfig) version() string {
	if c.NoDotU {
		return ninep.VERSION_9P2000
	}
	return ninep.VERSION_9P2000u
}

func (c *ClientConfig) dialer() ninep.Dialer {
	var d ninep.Dialer = &ninep.TCPDialer{
		Timeout:         time.Duration(c.TimeoutInSeconds) * time.Second,
		KeepAlivePeriod: time.Duration(c.KeepAliveInSeconds) * time.Second,
	}
	if c.TLS {
		d = &ninep.TLSDialer{Dialer: d}
	}
	return d
}

// authServer returns the auth server to use, falling back to the file
// server's host.
func (c *ClientConfig) authServer(addr string) (string, error) {
	authserv := c.AuthServer
	if authserv == "" {
		_, address, err := ninep.ParseAddr(addr, ninep.DefaultPort)
		if err != nil {
			return "", err
		}
		authserv = address
		if host, _, err := net.SplitHostPort(address); err == nil {
			authserv = host
		}
	}
	_, address, err := ninep.ParseAddr(authserv, ninep.DefaultAuthPort)
	return address, err
}

func (c *ClientConfig) password() (string, error) {
	if c.Password != PromptPassword {
		return c.Password, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("cannot prompt for password: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CreateClient mounts addr, or the --local directory when set.
func (c *ClientConfig) CreateClient(ctx context.Context, addr string, logger *slog.Logger) (ninep.Client, error) {
	if c.Local != "" {
		if st, err := os.Stat(c.Local); err != nil {
			return nil, err
		} else if !st.IsDir() {
			return nil, &ninep.Error{Ename: "not a directory: " + c.Local, Errno: ninep.ENOTDIR}
		}
		logger.Debug("client.local", slog.String("dir", c.Local))
		return ninep.NewLoopback(osfs.New(c.Local), c.User), nil
	}

	cfg := ninep.MountConfig{
		Addr:    addr,
		Version: c.version(),
		User:    c.User,
		Aname:   c.Aname,
		Dialer:  c.dialer(),
		Logger:  logger,
		Chatty:  c.Chatty,
	}
	if c.Password != "" {
		passwd, err := c.password()
		if err != nil {
			return nil, err
		}
		if cfg.AuthAddr, err = c.authServer(addr); err != nil {
			return nil, err
		}
		cfg.Auth = &ninep.SecretAuth{Secret: passwd}
	}
	return ninep.Mount(ctx, cfg)
}
