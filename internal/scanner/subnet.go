package scanner

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// maxSubnetHosts caps the number of addresses enumerated for one subnet (/16).
const maxSubnetHosts = 1 << 16

// enumerateTargets lists the addresses of subnet that are not excluded.
func (s *Scanner) enumerateTargets(subnet string) ([]string, error) {
	_, ipNet, err := net.ParseCIDR(subnet)
	if err != nil {
		return nil, err
	}

	ones, bits := ipNet.Mask.Size()
	if bits-ones > 16 {
		return nil, fmt.Errorf("subnet %s exceeds %d addresses", subnet, maxSubnetHosts)
	}

	var targets []string
	for ip := ipNet.IP.Mask(ipNet.Mask); ipNet.Contains(ip); incrementIP(ip) {
		// Copy IP string before moving on, incrementIP mutates the underlying bytes
		ipStr := ip.String()
		if s.isExcluded(ipStr) {
			continue
		}
		targets = append(targets, ipStr)
	}

	return targets, nil
}

// discoverHosts probes targets with the worker pool and returns the live
// ones in target order.
func (s *Scanner) discoverHosts(ctx context.Context, targets []string) []string {
	alive := make([]bool, len(targets))
	index := make(map[string]int, len(targets))
	for i, t := range targets {
		index[t] = i
	}

	s.forEach(ctx, targets, func(ip string) {
		if s.probeHost(ctx, ip) {
			alive[index[ip]] = true
		}
	})

	hosts := make([]string, 0)
	for i, ok := range alive {
		if ok {
			hosts = append(hosts, targets[i])
		}
	}
	return hosts
}

// forEach runs fn over items on config.Concurrency workers and waits for all
// of them. Feeding stops when ctx is cancelled.
func (s *Scanner) forEach(ctx context.Context, items []string, fn func(string)) {
	numWorkers := s.config.Concurrency
	if numWorkers > len(items) {
		numWorkers = len(items)
	}
	if numWorkers == 0 {
		return
	}

	itemChan := make(chan string, numWorkers*2)
	var workerWg sync.WaitGroup

	// Start worker pool
	for i := 0; i < numWorkers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for item := range itemChan {
				if ctx.Err() != nil {
					continue
				}
				fn(item)
			}
		}()
	}

feedLoop:
	for _, item := range items {
		select {
		case itemChan <- item:
		case <-ctx.Done():
			break feedLoop
		}
	}

	close(itemChan)
	workerWg.Wait()
}
