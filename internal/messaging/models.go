// Package messaging receives scan reports over TCP, classifies each one into a
// typed message and turns it into a status line.
package messaging

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the type of a scan report on the wire.
type Kind string

const (
	KindNetworkScan Kind = "network_scan"
	KindHostScan    Kind = "host_scan"
)

// Message is a classified scan report. It is implemented only by NetworkScan
// and HostScan.
type Message interface {
	Kind() Kind
	isMessage()
}

// NetworkScan lists the hosts that responded to a network sweep, in the order
// they were reported. Duplicates are kept.
type NetworkScan struct {
	Hosts []string
}

// Kind implements Message.
func (NetworkScan) Kind() Kind { return KindNetworkScan }

func (NetworkScan) isMessage() {}

// HostScan lists the open ports found on a single host.
type HostScan struct {
	Host  string
	Ports []uint16
}

// Kind implements Message.
func (HostScan) Kind() Kind { return KindHostScan }

func (HostScan) isMessage() {}

// OpenPorts returns the result as a single-entry host to ports mapping.
func (m HostScan) OpenPorts() map[string][]uint16 {
	return map[string][]uint16{m.Host: m.Ports}
}

// wireMessage is the JSON shape of a report.
type wireMessage struct {
	Type string  `json:"type"`
	Host *string `json:"host,omitempty"`
	Data any     `json:"data"`
}

// Encode renders msg in the wire format accepted by Classify.
func Encode(msg Message) ([]byte, error) {
	var w wireMessage
	switch m := msg.(type) {
	case NetworkScan:
		hosts := m.Hosts
		if hosts == nil {
			hosts = []string{}
		}
		w = wireMessage{Type: string(KindNetworkScan), Data: hosts}
	case HostScan:
		ports := m.Ports
		if ports == nil {
			ports = []uint16{}
		}
		w = wireMessage{Type: string(KindHostScan), Host: &m.Host, Data: ports}
	default:
		return nil, fmt.Errorf("cannot encode message of type %T", msg)
	}

	body, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return body, nil
}
