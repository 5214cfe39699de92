package scanner

import (
	"context"
	"errors"
	"net"
	"sort"
	"strconv"
	"syscall"
	"time"
)

// portState is the outcome of one connect attempt.
type portState int

const (
	portFiltered portState = iota // no answer or unreachable
	portOpen
	portClosed // connection refused, so the host is up
	portTimedOut
)

// probeHost reports whether ip answers on any of the common ports. After
// DeadHostThreshold consecutive timeouts the host is assumed down.
func (s *Scanner) probeHost(ctx context.Context, ip string) bool {
	consecutiveTimeouts := 0
	for _, port := range s.config.CommonPorts {
		if err := s.limiter.Wait(ctx); err != nil {
			return false
		}

		switch s.scanPort(ctx, ip, port) {
		case portOpen, portClosed:
			return true
		case portTimedOut:
			consecutiveTimeouts++
			if consecutiveTimeouts >= s.deadHostThreshold() {
				return false
			}
		}
	}
	return false
}

// ScanTarget scans a single IP address for open ports and returns them in
// ascending order. Uses dead host detection: after consecutive timeouts
// exceed the threshold, the remaining ports are skipped.
func (s *Scanner) ScanTarget(ctx context.Context, ip string) ([]uint16, error) {
	open := make([]uint16, 0)
	consecutiveTimeouts := 0

	for _, port := range s.expandPortRanges() {
		// Wait for rate limiter
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		switch s.scanPort(ctx, ip, port) {
		case portOpen:
			consecutiveTimeouts = 0
			open = append(open, uint16(port))
		case portTimedOut:
			consecutiveTimeouts++
			if consecutiveTimeouts >= s.deadHostThreshold() {
				s.logger.Debugw("Host appears dead, skipping remaining ports",
					"ip", ip,
					"consecutive_timeouts", consecutiveTimeouts,
				)
				sort.Slice(open, func(i, j int) bool { return open[i] < open[j] })
				return open, nil
			}
		default:
			consecutiveTimeouts = 0
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(open, func(i, j int) bool { return open[i] < open[j] })
	return open, nil
}

func (s *Scanner) scanPort(ctx context.Context, ip string, port int) portState {
	address := net.JoinHostPort(ip, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: time.Duration(s.config.Timeout) * time.Millisecond}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		var netErr net.Error
		switch {
		case errors.Is(err, syscall.ECONNREFUSED):
			return portClosed
		case errors.As(err, &netErr) && netErr.Timeout():
			return portTimedOut
		default:
			return portFiltered
		}
	}
	_ = conn.Close()

	return portOpen
}

func (s *Scanner) deadHostThreshold() int {
	if s.config.DeadHostThreshold <= 0 {
		return 5
	}
	return s.config.DeadHostThreshold
}
