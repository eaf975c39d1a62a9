package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thesyncim/lcpd/cmd/lcpd/server"
	"github.com/thesyncim/lcpd/pkg/config"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve GET /lcp until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("listen", "", "listen address (default :3000)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	rt, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(server.Config{
		Addr:         cfg.Server.Listen,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.HTTPWriteTimeout(),
	}, rt.service,
		server.WithLogger(logger.Named("http")),
		server.WithStats(rt.stats),
		server.WithMetrics(rt.metrics))
	if err != nil {
		return err
	}

	addr, err := srv.Start()
	if err != nil {
		return err
	}
	printBanner(cmd.OutOrStdout(), addr, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	if err := rt.browsers.Close(); err != nil {
		logger.Warn("browser shutdown", zap.Error(err))
	}
	return nil
}

func printBanner(w io.Writer, addr string, cfg config.Config) {
	title := color.New(color.FgCyan, color.Bold)
	key := color.New(color.FgYellow)

	title.Fprintln(w, "lcpd - Largest Contentful Paint server")
	fmt.Fprintln(w, "======================================")
	key.Fprint(w, "listening   ")
	fmt.Fprintln(w, addr)
	key.Fprint(w, "auditor     ")
	fmt.Fprintln(w, cfg.Auditor)
	key.Fprint(w, "debug port  ")
	fmt.Fprintln(w, cfg.Browser.DebugPort)
	key.Fprint(w, "try         ")
	fmt.Fprintf(w, "curl 'http://%s/lcp?url=https://example.com'\n", addr)
}
