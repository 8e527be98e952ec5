package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fscore-cli/internal/api"
	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/schedule"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve scores, quarantine review and run history over HTTP",
	Long:  "Starts the HTTP API. When server.schedule is set, the full pipeline also runs on that cron schedule; runs never overlap.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		var sched *schedule.Scheduler
		deps := api.Deps{Scores: env.Loader, Quarantine: env.Ledger, Runs: env.Store}
		if cfg.Server.Schedule != "" {
			freq, err := model.ParseFrequency(cfg.ETL.Frequency)
			if err != nil {
				return err
			}
			job := pipelineJob(env, pipelineOptions{UniverseFile: cfg.ETL.UniverseFile}, freq)
			sched, err = schedule.New(cfg.Server.Schedule, job)
			if err != nil {
				return err
			}
			deps.Trigger = sched
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewRouter(deps, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if sched != nil {
			g.Go(func() error { return sched.Run(gctx) })
		}

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
