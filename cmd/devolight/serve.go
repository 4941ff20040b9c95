package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cheerhou/DevoLight/internal/adapter/httpapi"
	"github.com/cheerhou/DevoLight/internal/infra/tracer"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the routing API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, closeLog, err := opts.loadWithLogger()
			if err != nil {
				return err
			}
			defer closeLog()
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
			if err != nil {
				return fmt.Errorf("tracer: %w", err)
			}
			defer tracerShutdown(context.WithoutCancel(ctx))

			a, err := wireApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if cfg.Scheduler.Enabled {
				sched, err := a.newScheduler()
				if err != nil {
					return fmt.Errorf("scheduler: %w", err)
				}
				if err := sched.Start(ctx); err != nil {
					return fmt.Errorf("scheduler: %w", err)
				}
				defer func() {
					sched.Stop()
					for _, st := range sched.Status() {
						log.Info("maintenance task summary",
							"task", st.Name,
							"runs", st.Runs,
							"failures", st.Failures,
							"last_error", st.LastError,
						)
					}
				}()
			}

			srv, err := httpapi.NewServer(cfg.Server, a.service, a.registry, log)
			if err != nil {
				return err
			}
			if err := srv.Start(ctx); err != nil {
				return err
			}

			log.Info("devolight starting",
				"addr", srv.Addr(),
				"responder", a.responder.Name(),
				"audit", a.audit != nil,
				"scheduler", cfg.Scheduler.Enabled,
			)
			fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", srv.Addr())

			<-ctx.Done()
			log.Info("shutting down")

			shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
			defer cancelShutdown()
			if err := srv.Stop(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
