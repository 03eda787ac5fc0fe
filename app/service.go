// Package app wires configuration, resources, the optimizer and the outer
// sinks into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc/pool"

	"github.com/kilianp07/ecom/api/runs"
	"github.com/kilianp07/ecom/app/plugins"
	"github.com/kilianp07/ecom/config"
	coremetrics "github.com/kilianp07/ecom/core/metrics"
	coremon "github.com/kilianp07/ecom/core/monitoring"
	coremqtt "github.com/kilianp07/ecom/core/mqtt"
	"github.com/kilianp07/ecom/core/resource"
	"github.com/kilianp07/ecom/core/runlog"
	"github.com/kilianp07/ecom/core/scene"
	"github.com/kilianp07/ecom/infra/logger"
	"github.com/kilianp07/ecom/infra/metrics"
	"github.com/kilianp07/ecom/infra/monitoring"
	"github.com/kilianp07/ecom/infra/mqtt"
	"github.com/kilianp07/ecom/internal/eventbus"
	"github.com/kilianp07/ecom/pkg/export"
)

// Service runs the configured scene and forwards its results.
type Service struct {
	cfg        *config.Config
	log        logger.Logger
	community  *resource.Community
	eval       scene.Evaluator
	sink       coremetrics.MetricsSink
	store      runlog.Store
	publisher  coremqtt.Publisher
	bus        *eventbus.TypedBus[coremetrics.IterationEvent]
	paho       *mqtt.PahoClient
	// ackTimeout > 0 makes deliver wait for every published setpoint.
	ackTimeout time.Duration
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher replaces the MQTT publisher built from the configuration.
func WithPublisher(p coremqtt.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger replaces the zerolog logger built from the configuration.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	s := &Service{
		cfg: cfg,
		log: logger.NewWithConfig("service", cfg.Log, os.Stdout),
		bus: eventbus.NewTyped[coremetrics.IterationEvent](),
	}
	for _, o := range opts {
		o(s)
	}

	if s.community, err = cfg.Community.Build(); err != nil {
		return nil, fmt.Errorf("community: %w", err)
	}
	if s.eval, err = plugins.NewEvaluator(s.community, cfg.Scene.Evaluator); err != nil {
		return nil, fmt.Errorf("evaluator: %w", err)
	}
	if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if s.store, err = runlog.NewStore(cfg.RunLog); err != nil {
		return nil, fmt.Errorf("runlog: %w", err)
	}
	if cfg.MQTT != nil {
		mc := *cfg.MQTT
		mc.SetDefaults()
		s.ackTimeout = mc.AckTimeout()
	}
	if s.publisher == nil && cfg.MQTT != nil {
		s.paho, err = mqtt.NewPahoClient(*cfg.MQTT)
		if err != nil {
			s.closeStore()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		s.publisher = s.paho
	}
	return s, nil
}

// Community returns the community built from the configuration.
func (s *Service) Community() *resource.Community { return s.community }

// Run performs the configured number of runs and returns their results. Run
// i uses optimizer seed + i. The best schedule over all runs is exported and
// published. Cancellation stops after the current iteration; runs started so
// far are still recorded but nothing is exported or published.
func (s *Service) Run(ctx context.Context) ([]scene.Result, error) {
	var wg sync.WaitGroup
	if s.cfg.Metrics.ListenAddr != "" {
		var routes []metrics.Route
		if s.store != nil {
			api := runs.NewHandler(s.store, s.cfg.Metrics.APIToken)
			routes = append(routes, metrics.Route{Pattern: "/api/runs", Handler: api}, metrics.Route{Pattern: "/api/runs/", Handler: api})
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer coremon.Recover()
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.ListenAddr, prometheus.DefaultGatherer, s.log, routes...); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	collectCtx, stopCollect := context.WithCancel(context.Background())
	collected := metrics.StartIterationCollector(collectCtx, s.bus, s.sink, s.log)
	defer func() {
		stopCollect()
		collected.Wait()
	}()

	var (
		results []scene.Result
		runErr  error
	)
	for i := 0; i < s.cfg.Scene.Runs; i++ {
		res, err := s.runOnce(ctx, i)
		if res.Best != nil {
			results = append(results, res)
			s.record(ctx, res)
		}
		if err != nil {
			runErr = err
			break
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		coremon.CaptureException(runErr, map[string]string{"scene": s.cfg.Scene.Name})
	}

	if best, ok := Best(results); ok && ctx.Err() == nil {
		if err := s.deliver(best); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	if s.cfg.Metrics.ListenAddr == "" {
		return results, runErr
	}
	// keep serving /metrics until the caller cancels
	<-ctx.Done()
	wg.Wait()
	return results, runErr
}

func (s *Service) runOnce(ctx context.Context, i int) (scene.Result, error) {
	opt := s.cfg.Optimizer
	opt.Seed += uint64(i)
	sc, err := scene.New(s.cfg.Scene.Name, s.community, s.eval,
		scene.WithLogger(s.log),
		scene.WithProgress(s.bus),
		scene.WithWorkers(s.cfg.Scene.Workers),
		scene.WithOptimizerConfig(opt),
	)
	if err != nil {
		return scene.Result{}, err
	}
	return sc.Run(ctx)
}

// record forwards a finished run to the metrics sinks and the run log.
// Failures are logged and reported but do not abort the remaining runs.
func (s *Service) record(ctx context.Context, res scene.Result) {
	tags := map[string]string{"scene": res.Scene, "run_id": res.RunID}
	if rec, ok := s.sink.(coremetrics.RunRecorder); ok {
		if err := rec.RecordRun(res.Summary()); err != nil {
			s.log.Errorf("record run %s: %v", res.RunID, coremon.Report(err, tags))
		}
	}
	if s.store == nil {
		return
	}
	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.Append(appendCtx, runlog.FromResult(res)); err != nil {
		s.log.Errorf("store run %s: %v", res.RunID, coremon.Report(err, tags))
	}
}

// deliver exports and publishes the best schedule.
func (s *Service) deliver(res scene.Result) error {
	var errs []error
	if exp := s.cfg.Scene.Export; exp.Path != "" {
		if err := writeExport(exp, res); err != nil {
			errs = append(errs, fmt.Errorf("export: %w", err))
		} else {
			s.log.Infof("best schedule of run %s written to %s", res.RunID, exp.Path)
		}
	}
	if s.publisher != nil {
		ids, err := s.publisher.PublishSchedule(res.RunID, res.Scene, res.Best)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish: %w", err))
		}
		if s.ackTimeout > 0 && len(ids) > 0 {
			if err := s.awaitAcks(res, ids); err != nil {
				errs = append(errs, fmt.Errorf("ack: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

// awaitAcks waits concurrently for the ack of every published setpoint.
// Missing acks are reported to the monitor.
func (s *Service) awaitAcks(res scene.Result, ids []string) error {
	var missing atomic.Int64
	p := pool.New().WithErrors()
	for _, id := range ids {
		p.Go(func() error {
			ok, err := s.publisher.WaitForAck(id, s.ackTimeout)
			if !ok {
				missing.Add(1)
			}
			if errors.Is(err, coremqtt.ErrAckTimeout) {
				return nil
			}
			return err
		})
	}
	err := p.Wait()
	if n := missing.Load(); n > 0 {
		err = errors.Join(err, fmt.Errorf("%d of %d setpoints of run %s: %w", n, len(ids), res.RunID, coremqtt.ErrAckTimeout))
	}
	if err != nil {
		return coremon.Report(err, map[string]string{"module": "mqtt", "scene": res.Scene, "run_id": res.RunID})
	}
	s.log.Infof("all %d setpoints of run %s acknowledged", len(ids), res.RunID)
	return nil
}

func writeExport(cfg config.ExportConfig, res scene.Result) (err error) {
	format, err := export.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	f, err := os.Create(cfg.Path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return export.Write(f, format, export.FromCandidate(res.RunID, res.Scene, res.BestFitness, res.Best))
}

// Best returns the result with the lowest fitness.
func Best(results []scene.Result) (scene.Result, bool) {
	if len(results) == 0 {
		return scene.Result{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.BestFitness < best.BestFitness {
			best = r
		}
	}
	return best, true
}

func (s *Service) closeStore() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.paho != nil {
		s.paho.Disconnect()
	}
	err := s.closeStore()
	coremon.Flush(2 * time.Second)
	return err
}
