package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ignite/aicmo-cam/internal/api"
	"github.com/ignite/aicmo-cam/internal/container"
	"github.com/ignite/aicmo-cam/internal/flow"
	"github.com/ignite/aicmo-cam/internal/metrics"
	"github.com/ignite/aicmo-cam/internal/pkg/distlock"
	"github.com/ignite/aicmo-cam/internal/pkg/logger"
	"github.com/ignite/aicmo-cam/internal/repository/postgres"
	"github.com/ignite/aicmo-cam/internal/worker"
)

func newRunCommand() *cobra.Command {
	var (
		once   bool
		noOps  bool
		opsOvr string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the worker loop and the ops server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if opsOvr != "" {
				cfg.Ops.Addr = opsOvr
			}
			ctx := cmd.Context()

			conns, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer conns.Close()

			recorder := metrics.NewRecorder()
			c, reg := container.CreateDefault(ctx, cfg, container.Deps{
				DB:      conns.db,
				Redis:   conns.redis,
				Metrics: recorder,
			})
			runner := flow.NewRunner(c, flow.Config{
				WorkerID:      cfg.Worker.ID,
				Limit:         cfg.Campaign.DailyBatchSize,
				CriticalSteps: cfg.Worker.CriticalSteps,
			}, flow.WithJournal(container.NewJournal(ctx, cfg.Journal)))

			lock, _ := container.Get(c, container.LockKey)
			w := worker.New(worker.Config{
				ID:       cfg.Worker.ID,
				Enabled:  cfg.Worker.Enabled,
				Interval: cfg.Worker.Interval(),
				LockTTL:  cfg.Worker.LockTTL(),
				Once:     once,
			}, lock, reg, runner, worker.WithHealthGauge(recorder))

			opts := []api.Option{
				api.WithLock(lock),
				api.WithRedis(conns.redis),
				api.WithCORSOrigins(cfg.Ops.CORSOrigins),
			}
			if conns.db != nil {
				opts = append(opts, api.WithDatabase(conns.db))
			}
			switch {
			case cfg.Worker.LockBackend == "redis" && conns.redis != nil:
				opts = append(opts, api.WithHeartbeats(distlock.NewRedisLock(conns.redis, container.LockName)))
			case conns.db != nil:
				opts = append(opts, api.WithHeartbeats(postgres.NewHeartbeatRepo(conns.db)))
			}
			srv := api.NewServer(cfg.Worker.ID, reg, runner, recorder.Handler(), opts...)

			g, gctx := errgroup.WithContext(ctx)
			opsCtx, stopOps := context.WithCancel(gctx)
			defer stopOps()

			g.Go(func() error {
				// The ops server lives as long as the worker loop.
				defer stopOps()
				return w.Run(gctx)
			})
			if !once && !noOps {
				g.Go(func() error {
					return srv.ListenAndServe(opsCtx, cfg.Ops.Addr)
				})
			}

			err = g.Wait()
			logger.Info("worker exited", "worker_id", cfg.Worker.ID)
			return err
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	cmd.Flags().BoolVar(&noOps, "no-ops", false, "do not start the ops HTTP server")
	cmd.Flags().StringVar(&opsOvr, "ops-addr", "", "override the ops server listen address")
	return cmd
}
