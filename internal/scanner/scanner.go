// Package scanner implements the network and host sweeps whose results are
// reported to the collector.
package scanner

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/config"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/metrics"
)

// Reporter delivers sweep results.
type Reporter interface {
	ReportNetworkScan(ctx context.Context, hosts []string) error
	ReportHostScan(ctx context.Context, host string, ports []uint16) error
}

// Scanner performs network discovery operations.
type Scanner struct {
	config   config.ScannerConfig
	reporter Reporter
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger
	limiter  *rate.Limiter
	cancel   context.CancelFunc
	running  bool
	mu       sync.RWMutex
}

// New creates a new Scanner instance.
func New(cfg config.ScannerConfig, reporter Reporter, m *metrics.Metrics, logger *zap.SugaredLogger) *Scanner {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 100
	}

	return &Scanner{
		config:   cfg,
		reporter: reporter,
		metrics:  m,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit),
	}
}

// Initiate runs one sweep over the configured subnets and blocks until it is
// done. Failures are logged, nothing is returned to the caller.
func (s *Scanner) Initiate() {
	if err := s.Run(context.Background()); err != nil {
		s.logger.Warnw("Network scan did not complete", "error", err)
	}
}

// Run sweeps every configured subnet: one network scan report per subnet,
// then one host scan report per live host.
func (s *Scanner) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scanner already running")
	}
	s.running = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	if len(s.config.Subnets) == 0 {
		s.logger.Info("No subnets configured, skipping network scan")
		return nil
	}

	s.logger.Infow("Starting network scan", "subnets", s.config.Subnets)

	for _, subnet := range s.config.Subnets {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.sweepSubnet(ctx, subnet)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Info("Network scan finished")
	return nil
}

// Stop cancels a running sweep.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.logger.Info("Stopping scanner")
	s.cancel()
}

// IsRunning returns whether the scanner is currently running.
func (s *Scanner) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scanner) sweepSubnet(ctx context.Context, subnet string) {
	targets, err := s.enumerateTargets(subnet)
	if err != nil {
		s.logger.Errorw("Invalid subnet", "subnet", subnet, "error", err)
		return
	}

	s.logger.Infow("Scanning subnet", "subnet", subnet, "targets", len(targets))

	hosts := s.discoverHosts(ctx, targets)
	if ctx.Err() != nil {
		return
	}
	s.metrics.HostsDiscovered(len(hosts))

	if err := s.reporter.ReportNetworkScan(ctx, hosts); err != nil {
		s.logger.Errorw("Failed to report network scan", "subnet", subnet, "error", err)
	}

	s.forEach(ctx, hosts, func(host string) {
		ports, err := s.ScanTarget(ctx, host)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Warnw("Scan error", "ip", host, "error", err)
			}
			return
		}

		s.metrics.PortsDiscovered(len(ports))
		if err := s.reporter.ReportHostScan(ctx, host, ports); err != nil {
			s.logger.Errorw("Failed to report host scan", "ip", host, "error", err)
		}
	})
}
