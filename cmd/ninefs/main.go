package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/jeffh/ninefs/cli"
	efuse "github.com/jeffh/ninefs/exportfs/fuse"
	"github.com/jeffh/ninefs/exportfs/winfs"
	"github.com/jeffh/ninefs/metrics"
	"github.com/jeffh/ninefs/ninep"
)

// errReported marks a failure that was already printed.
var errReported = errors.New("reported")

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errReported) {
			cli.Errorf(os.Stderr, "error: %s", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		flags      cli.ClientConfig
		configFile string
	)
	cmd := &cobra.Command{
		Use:   "ninefs [-cdDtU] [-a authserv] [-p passwd] [-u user] addr mountpoint",
		Short: "Mount a 9P file server as a local file system",
		Long: `Mount a 9P file server as a local file system.

addr and authserv are of the form tcp!hostname!port, tcp!hostname,
hostname:port or hostname. The file server port defaults to 564 and the
auth server port to 567. Every flag can also be set through a NINEFS_
environment variable (NINEFS_USER, NINEFS_NO_TRANSLATE, ...) or a config
file given with --config.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, args[0], args[1])
		},
	}
	flags.SetFlags(cmd.Flags())
	cmd.Flags().StringVar(&configFile, "config", "", "Config file (yaml, toml or json)")
	return cmd
}

func run(ctx context.Context, cfg *cli.ClientConfig, addr, mountpoint string) error {
	cli.SupportsColor(cfg.NoColor)
	logger := cfg.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	clt, err := cfg.CreateClient(ctx, addr, logger)
	if err != nil {
		msg, errno := ninep.LastError(err)
		cli.Errorf(os.Stderr, "failed to mount %s: (%d) %s", addr, errno, msg)
		return errReported
	}

	session := winfs.NewSession(clt, cfg.SessionOptions(logger))
	var ops winfs.Operations = winfs.New(session)

	var registry *prometheus.Registry
	if cfg.MetricsAddr != "" {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		ops = metrics.Instrument(ops, metrics.New(registry))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// a mount removed from outside ends the whole process
		defer cancel()
		return efuse.MountAndServe(gctx, ops, mountpoint, efuse.Config{
			FsName: addr,
			Chatty: cfg.DriverDebug,
			Logger: logger,
		})
	})

	if registry != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics.listen", slog.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	// a no-op when MountAndServe already unmounted
	if uerr := session.Unmount(); uerr != nil {
		logger.Warn("client.close.failed", slog.String("error", uerr.Error()))
	}
	return err
}
