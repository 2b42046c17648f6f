package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tincan-labs/tincan/internal/signalserver"
)

var flagServeAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling server",
	Long: `Run the signaling server that introduces call participants to each
other. Rooms hold at most two peers; the server relays session
descriptions and ICE candidates between them and gets out of the way
once the call is up.

Examples:
  tincan serve
  tincan serve --addr :9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(flagServeAddr)
	},
}

func runServe(addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := signalserver.NewHub(slog.Default())
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: signalserver.Routes(hub),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("signaling server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&flagServeAddr, "addr", "a", ":8080", "Listen address")
}
