package scanner

import (
	"fmt"
	"net"
	"sort"
)

// priorityPorts are scanned first so that the most telling services are seen
// before dead host detection can give up on a host.
var priorityPorts = map[int]bool{
	22:    true, // SSH
	80:    true, // HTTP
	443:   true, // HTTPS
	3306:  true, // MySQL
	5432:  true, // PostgreSQL
	6379:  true, // Redis
	27017: true, // MongoDB
}

func (s *Scanner) expandPortRanges() []int {
	portSet := make(map[int]bool)

	// Add common ports
	for _, port := range s.config.CommonPorts {
		portSet[port] = true
	}

	// Parse port ranges
	for _, rangeStr := range s.config.PortRanges {
		var start, end int
		if n, _ := fmt.Sscanf(rangeStr, "%d-%d", &start, &end); n == 2 {
			for p := max(start, 1); p <= min(end, 65535); p++ {
				portSet[p] = true
			}
		} else if n, _ := fmt.Sscanf(rangeStr, "%d", &start); n == 1 {
			portSet[start] = true
		}
	}

	// Partition into priority ports first, then the rest
	priority := make([]int, 0)
	rest := make([]int, 0, len(portSet))
	for port := range portSet {
		if port < 1 || port > 65535 {
			continue
		}
		if priorityPorts[port] {
			priority = append(priority, port)
		} else {
			rest = append(rest, port)
		}
	}

	sort.Ints(priority)
	sort.Ints(rest)

	return append(priority, rest...)
}

func (s *Scanner) isExcluded(ip string) bool {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, subnet := range s.config.ExcludeSubnets {
		_, ipNet, err := net.ParseCIDR(subnet)
		if err != nil {
			continue
		}
		if ipNet.Contains(parsedIP) {
			return true
		}
	}

	return false
}

func incrementIP(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}
