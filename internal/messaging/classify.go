package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Classify parses a single raw report and returns the typed message it
// carries. Any returned error is a *ClassificationError.
//
// Elements of "data" that do not fit the message kind are skipped: non-string
// hosts for a network scan, and anything but an integer in 0..65535 for a
// host scan.
func Classify(raw string) (Message, error) {
	root, err := decodeJSON(raw)
	if err != nil {
		return nil, newClassificationError(ErrInvalidEncoding, err)
	}

	obj, ok := root.(map[string]any)
	if !ok {
		return nil, newClassificationError(ErrMissingType, nil)
	}

	msgType, ok := obj["type"].(string)
	if !ok {
		return nil, newClassificationError(ErrMissingType, nil)
	}

	kind := Kind(msgType)
	if kind != KindNetworkScan && kind != KindHostScan {
		return nil, newClassificationError(ErrUnknownType, fmt.Errorf("%q", msgType))
	}

	data, ok := obj["data"].([]any)
	if !ok {
		return nil, newClassificationError(ErrInvalidData, nil)
	}

	if kind == KindNetworkScan {
		return NetworkScan{Hosts: collectHosts(data)}, nil
	}

	ports := collectPorts(data)
	host, ok := obj["host"].(string)
	if !ok {
		return nil, newClassificationError(ErrMissingHost, nil)
	}
	return HostScan{Host: host, Ports: ports}, nil
}

// decodeJSON decodes exactly one JSON value. Numbers are kept as json.Number
// so integer and float literals can be told apart.
func decodeJSON(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after JSON value")
		}
		return nil, err
	}

	return v, nil
}

func collectHosts(data []any) []string {
	hosts := make([]string, 0, len(data))
	for _, v := range data {
		if s, ok := v.(string); ok {
			hosts = append(hosts, s)
		}
	}
	return hosts
}

func collectPorts(data []any) []uint16 {
	ports := make([]uint16, 0, len(data))
	for _, v := range data {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		p, err := strconv.ParseUint(n.String(), 10, 16)
		if err != nil {
			continue
		}
		ports = append(ports, uint16(p))
	}
	return ports
}
