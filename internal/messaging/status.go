package messaging

import (
	"strconv"
	"strings"
)

const unhandledStatus = "Received unhandled message type"

// StatusLine describes a classified message.
func StatusLine(msg Message) string {
	switch m := msg.(type) {
	case NetworkScan:
		return "Received network scan result with hosts: " + formatHosts(m.Hosts)
	case HostScan:
		return "Received host scan result with open ports: {" +
			quote(m.Host) + ": " + formatPorts(m.Ports) + "}"
	default:
		return unhandledStatus
	}
}

// FailureLine describes a message that could not be classified.
func FailureLine(err error) string {
	return "Message classification failed: " + err.Error()
}

func formatHosts(hosts []string) string {
	quoted := make([]string, len(hosts))
	for i, h := range hosts {
		quoted[i] = quote(h)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func formatPorts(ports []uint16) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.FormatUint(uint64(p), 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
