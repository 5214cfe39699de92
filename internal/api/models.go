// Package api provides the HTTP API for the scan collector service.
package api

// StatusResponse describes the report listener.
type StatusResponse struct {
	Service           string `json:"service"`
	Listening         bool   `json:"listening"`
	Address           string `json:"address,omitempty"`
	ActiveConnections int    `json:"active_connections"`
}

// ScanStatusResponse describes the scanning engine.
type ScanStatusResponse struct {
	Status  string `json:"status"` // idle, running, disabled
	Running bool   `json:"running"`
}
