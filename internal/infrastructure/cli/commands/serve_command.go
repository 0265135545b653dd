package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/doeshing/vocmd/internal/app"
	"github.com/doeshing/vocmd/internal/infrastructure/httpapi"
)

// permissionSweepInterval is how often expired permission requests are audited and dropped.
const permissionSweepInterval = time.Minute

// NewServeCommand runs the HTTP API with background context validation.
func NewServeCommand(container *app.Container) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the command API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = container.Config.Server.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, container, addr, cmd)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func serve(ctx context.Context, container *app.Container, addr string, cmd *cobra.Command) error {
	server, err := httpapi.New(httpapi.Dependencies{
		Dispatcher:  container.Dispatcher,
		Suggestions: container.Suggestions,
		Context:     container.Detector,
		Modes:       container.Modes,
		Help:        container.Catalog,
		Audit:       container,
		Logger:      container.Logger,
		UserID:      container.Config.User.ID,
	})
	if err != nil {
		return err
	}

	container.DetectContext()
	container.Detector.Start(ctx)
	defer container.Detector.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, addr)
	})
	g.Go(func() error {
		ticker := time.NewTicker(permissionSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := container.Guardrail.SweepExpired(); n > 0 {
					container.Logger.Info("expired permission requests swept", map[string]interface{}{"count": n})
				}
			}
		}
	})
	if container.Config.Safety.WatchRules && container.Config.Safety.RulesFile != "" {
		watcher, err := container.RulesWatcher()
		if err != nil {
			container.Logger.Warn("rules watcher unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			g.Go(func() error {
				watcher.Run(ctx)
				return nil
			})
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "vocmd API listening on http://%s\n", addr)
	return g.Wait()
}
