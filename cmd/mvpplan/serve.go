package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mvpplanner/internal/adapters/exports"
	"mvpplanner/internal/adapters/httpapi"
	"mvpplanner/internal/adapters/watch"
	"mvpplanner/internal/blob"
	"mvpplanner/internal/config"
	"mvpplanner/internal/core"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		addr      string
		traceFile string
		watchFile bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planner API and Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.HTTPAddr = addr
			}
			if traceFile != "" {
				a.cfg.Logging.TraceFile = traceFile
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, watchFile)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config http_addr)")
	cmd.Flags().StringVar(&traceFile, "trace-file", "", "append engine spans as JSON lines to this file (overrides config trace_file)")
	cmd.Flags().BoolVar(&watchFile, "watch", false, "reload when the source workbook changes")
	return cmd
}

// server bundles the HTTP handler with the workers it depends on.
type server struct {
	handler http.Handler
	planner *planner
	worker  *exports.Worker
	reload  func(ctx context.Context) (core.LoadResult, error)
	trace   *os.File
}

// Close releases the planner source and the trace file.
func (s *server) Close() error {
	err := s.planner.Close()
	if s.trace != nil {
		err = errors.Join(err, s.trace.Close())
	}
	return err
}

func (a *app) newServer(ctx context.Context, reg *prometheus.Registry) (*server, error) {
	metrics, err := core.NewPrometheusRecorder(reg)
	if err != nil {
		return nil, err
	}
	audit := logAudit{logger: a.logger.Named("audit")}
	opts := []core.Option{core.WithMetrics(metrics), core.WithAudit(audit)}
	var trace *os.File
	if path := a.cfg.Logging.TraceFile; path != "" {
		trace, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		opts = append(opts, core.WithTracer(core.NewJSONTracer(trace)))
	}
	closeTrace := func() {
		if trace != nil {
			_ = trace.Close()
		}
	}
	p, err := a.openPlanner(ctx, opts...)
	if p == nil {
		closeTrace()
		return nil, err
	}
	if err != nil {
		a.logger.Error("initial load failed; serving empty planner until refresh", zap.Error(err))
	}

	store, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		_ = p.Close()
		closeTrace()
		return nil, err
	}
	worker := exports.NewWorker(p.engine, store,
		exports.WithLogger(a.logger.Named("exports")),
		exports.WithAudit(audit),
		exports.WithMetrics(metrics),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/", httpapi.Handler{
		Engine:    p.engine,
		Source:    p.source.Provider,
		Refresh:   p.reload,
		Exports:   worker,
		Artifacts: store,
		Logger:    a.logger.Named("http"),
	})
	return &server{handler: mux, planner: p, worker: worker, reload: p.reload, trace: trace}, nil
}

func (a *app) serve(ctx context.Context, watchFile bool) error {
	if watchFile && a.cfg.Source.Driver != config.SourceWorkbook {
		return errors.New("--watch requires the workbook source driver")
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srv, err := a.newServer(ctx, reg)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()
	srv.worker.Start()

	httpServer := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server listening", zap.String("addr", a.cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if watchFile {
		w := watch.New(a.cfg.Source.WorkbookPath, srv.reload, watch.WithLogger(a.logger.Named("watch")))
		g.Go(func() error { return w.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return srv.worker.Stop(shutdownCtx)
	})
	return g.Wait()
}

// logAudit writes audit entries to the structured log.
type logAudit struct {
	logger *zap.Logger
}

func (l logAudit) Record(_ context.Context, e core.AuditEntry) {
	fields := []zap.Field{
		zap.String("operation", e.Operation),
		zap.String("status", string(e.Status)),
		zap.String("actor", e.Actor),
		zap.String("target", e.Target),
		zap.Time("occurred_at", e.OccurredAt),
	}
	for k, v := range e.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}
	if e.Status == core.AuditStatusError {
		l.logger.Warn("audit", append(fields, zap.String("error", e.Error))...)
		return
	}
	l.logger.Info("audit", fields...)
}
