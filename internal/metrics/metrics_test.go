package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionMetrics(t *testing.T) {
	m := New()

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.AcceptFailed()
	m.ReadFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.acceptErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.readErrors))
}

func TestMessageMetrics(t *testing.T) {
	m := New()

	m.MessageReceived()
	m.MessageReceived()
	m.MessageReceived()
	m.MessageClassified("network_scan")
	m.MessageClassified("host_scan")
	m.ClassificationFailed("INVALID_ENCODING")
	m.PublishFailed()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.received))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classified.WithLabelValues("network_scan")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classified.WithLabelValues("host_scan")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classifyErrors.WithLabelValues("INVALID_ENCODING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishErrors))
}

func TestScannerMetrics(t *testing.T) {
	m := New()

	m.ReportSent("host_scan", true)
	m.ReportSent("host_scan", false)
	m.HostsDiscovered(3)
	m.PortsDiscovered(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.reportsSent.WithLabelValues("host_scan", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reportsSent.WithLabelValues("host_scan", "failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.hostsFound))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.portsFound))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ConnectionOpened()
		m.ConnectionClosed()
		m.AcceptFailed()
		m.ReadFailed()
		m.MessageReceived()
		m.MessageClassified("network_scan")
		m.ClassificationFailed("MISSING_TYPE")
		m.PublishFailed()
		m.ReportSent("network_scan", true)
		m.HostsDiscovered(1)
		m.PortsDiscovered(1)
	})
	assert.Nil(t, m.Registry())
	assert.NotNil(t, m.Handler())
}

func TestHandler(t *testing.T) {
	m := New()
	m.MessageClassified("network_scan")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `scan_collector_messages_classified_total{kind="network_scan"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
