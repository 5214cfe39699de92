package callback

import (
	"fmt"

	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/messaging"
)

// encodeChunks encodes msg as one or more messages of at most limit bytes.
// Hosts or ports are split in order across consecutive messages; the host of
// a host scan is repeated in each one. An empty result is still one message.
func encodeChunks(msg messaging.Message, limit int) ([][]byte, error) {
	var (
		n    int
		part func(lo, hi int) messaging.Message
	)
	switch m := msg.(type) {
	case messaging.NetworkScan:
		n = len(m.Hosts)
		part = func(lo, hi int) messaging.Message {
			return messaging.NetworkScan{Hosts: m.Hosts[lo:hi]}
		}
	case messaging.HostScan:
		n = len(m.Ports)
		part = func(lo, hi int) messaging.Message {
			return messaging.HostScan{Host: m.Host, Ports: m.Ports[lo:hi]}
		}
	default:
		body, err := messaging.Encode(msg)
		if err != nil {
			return nil, err
		}
		return [][]byte{body}, nil
	}

	var chunks [][]byte
	for lo := 0; ; {
		body, err := messaging.Encode(part(lo, lo))
		if err != nil {
			return nil, err
		}
		if len(body) > limit {
			return nil, fmt.Errorf("%s report does not fit in %d bytes", msg.Kind(), limit)
		}

		hi := lo
		for hi < n {
			next, err := messaging.Encode(part(lo, hi+1))
			if err != nil {
				return nil, err
			}
			if len(next) > limit {
				break
			}
			body, hi = next, hi+1
		}
		if hi == lo && lo < n {
			return nil, fmt.Errorf("%s report entry %d does not fit in %d bytes", msg.Kind(), lo, limit)
		}

		chunks = append(chunks, body)
		lo = hi
		if lo >= n {
			return chunks, nil
		}
	}
}
