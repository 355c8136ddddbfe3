package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	neuralsim "neuralsim/pkg/neuralsim"
)

const (
	defaultStore        = "badger"
	defaultDBPath       = "neuralsim.badger"
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	store        string
	dbPath       string
	artifactsDir string
	logLevel     string
	metricsAddr  string

	logger  *slog.Logger
	metrics *http.Server
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("command failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "neuralsimctl",
		Short:         "Build, run and inspect neural network simulations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := parseLevel(g.logLevel)
			if err != nil {
				return err
			}
			g.logger = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
			return g.startMetrics()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return g.stopMetrics(cmd.Context())
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&g.store, "store", defaultStore, "store backend: memory|badger|sqlite")
	flags.StringVar(&g.dbPath, "db-path", defaultDBPath, "badger directory or sqlite file")
	flags.StringVar(&g.artifactsDir, "artifacts-dir", defaultArtifactsDir, "directory for run artifacts")
	flags.StringVar(&g.logLevel, "log-level", "info", "debug|info|warn|error")
	flags.StringVar(&g.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")

	root.AddCommand(
		newInitCmd(g),
		newRunCmd(g),
		newRunsCmd(g),
		newInspectCmd(g),
		newExportCmd(g),
	)
	return root
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func (g *globals) startMetrics() error {
	if g.metricsAddr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", g.metricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	g.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := g.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Warn("metrics server stopped", slog.Any("err", err))
		}
	}()
	g.logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))
	return nil
}

func (g *globals) stopMetrics(ctx context.Context) error {
	if g.metrics == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return g.metrics.Shutdown(ctx)
}

// client opens the API client described by the persistent flags.
func (g *globals) client(ctx context.Context) (*neuralsim.Client, error) {
	c, err := neuralsim.New(neuralsim.Options{
		StoreKind:    g.store,
		DBPath:       g.dbPath,
		ArtifactsDir: g.artifactsDir,
		ExportsDir:   defaultExportsDir,
		Logger:       g.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}
