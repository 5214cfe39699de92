// Package callback delivers scan results from the scanning engine to the
// collector's report listener.
package callback

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/config"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/messaging"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/metrics"
)

// Reporter sends scan results to the collector in the wire format.
//
// The collector treats each read as one message, so every message is written
// on its own connection and is at most maxSize bytes long. Results that do not
// fit are split across several messages of the same kind.
type Reporter struct {
	addr    string
	timeout time.Duration
	maxSize int
	dialer  net.Dialer
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
	sent    int64
	failed  int64
}

// NewReporter creates a new reporter for the collector at addr. maxSize is the
// collector's read buffer size; values below config.MinBufferSize are raised
// to it.
func NewReporter(addr string, timeout time.Duration, maxSize int, m *metrics.Metrics, logger *zap.SugaredLogger) *Reporter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxSize < config.MinBufferSize {
		maxSize = config.MinBufferSize
	}
	return &Reporter{
		addr:    addr,
		timeout: timeout,
		maxSize: maxSize,
		dialer:  net.Dialer{Timeout: timeout},
		metrics: m,
		logger:  logger,
	}
}

// ReportNetworkScan sends the hosts found by a network sweep.
func (r *Reporter) ReportNetworkScan(ctx context.Context, hosts []string) error {
	return r.report(ctx, messaging.NetworkScan{Hosts: hosts})
}

// ReportHostScan sends the open ports found on host.
func (r *Reporter) ReportHostScan(ctx context.Context, host string, ports []uint16) error {
	return r.report(ctx, messaging.HostScan{Host: host, Ports: ports})
}

// SentCount returns the number of messages delivered.
func (r *Reporter) SentCount() int {
	return int(atomic.LoadInt64(&r.sent))
}

// FailedCount returns the number of messages that could not be delivered.
func (r *Reporter) FailedCount() int {
	return int(atomic.LoadInt64(&r.failed))
}

func (r *Reporter) report(ctx context.Context, msg messaging.Message) error {
	kind := string(msg.Kind())

	bodies, err := encodeChunks(msg, r.maxSize)
	if err != nil {
		r.metrics.ReportSent(kind, false)
		atomic.AddInt64(&r.failed, 1)
		r.logger.Warnw("Report failed", "addr", r.addr, "kind", kind, "error", err)
		return err
	}

	for i, body := range bodies {
		err := r.send(ctx, body)
		r.metrics.ReportSent(kind, err == nil)
		if err != nil {
			atomic.AddInt64(&r.failed, 1)
			r.logger.Warnw("Report failed", "addr", r.addr, "kind", kind,
				"part", i+1, "parts", len(bodies), "error", err)
			return err
		}
		atomic.AddInt64(&r.sent, 1)
	}

	r.logger.Debugw("Report sent", "addr", r.addr, "kind", kind, "parts", len(bodies))
	return nil
}

func (r *Reporter) send(ctx context.Context, body []byte) error {
	conn, err := r.dialer.DialContext(ctx, "tcp", r.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to collector: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetWriteDeadline(time.Now().Add(r.timeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if _, err := conn.Write(body); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}
