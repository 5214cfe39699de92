package messaging_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/messaging"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/messaging/mocks"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/metrics"
)

type read struct {
	data string
	err  error
}

// scriptedReader returns one scripted read per call, then io.EOF.
type scriptedReader struct {
	reads   []read
	calls   int
	bufSize int
}

func newScriptedReader(reads ...read) *scriptedReader {
	return &scriptedReader{reads: reads}
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	r.calls++
	r.bufSize = len(p)
	if len(r.reads) == 0 {
		return 0, io.EOF
	}
	next := r.reads[0]
	r.reads = r.reads[1:]
	return copy(p, next.data), next.err
}

func newProcessor(t *testing.T, sink messaging.Sink, m *metrics.Metrics) *messaging.Processor {
	t.Helper()
	return messaging.NewProcessor(1024, sink, m, zaptest.NewLogger(t).Sugar())
}

func TestProcessNetworkScan(t *testing.T) {
	conn := newScriptedReader(read{data: `{"type": "network_scan", "data": ["192.168.0.1", "192.168.0.2"]}`})

	lines, err := newProcessor(t, nil, nil).Process(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`Received network scan result with hosts: ["192.168.0.1", "192.168.0.2"]`,
	}, lines)
}

func TestProcessHostScan(t *testing.T) {
	conn := newScriptedReader(read{data: `{"type":"host_scan","host":"192.168.0.1","data":[80,8080]}`})

	lines, err := newProcessor(t, nil, nil).Process(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`Received host scan result with open ports: {"192.168.0.1": [80, 8080]}`,
	}, lines)
}

func TestProcessContinuesAfterMalformedMessage(t *testing.T) {
	conn := newScriptedReader(
		read{data: `{"type: "network_scan"`},
		read{data: `{"type": "network_scan", "data": ["10.0.0.1"]}`},
	)

	lines, err := newProcessor(t, nil, nil).Process(context.Background(), conn)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Message classification failed: [INVALID_ENCODING] invalid JSON"), lines[0])
	assert.Equal(t, `Received network scan result with hosts: ["10.0.0.1"]`, lines[1])
}

func TestProcessRecordsEachClassificationError(t *testing.T) {
	conn := newScriptedReader(
		read{data: `{"data": []}`},
		read{data: `{"type":"bogus","data":[]}`},
		read{data: `{"type":"host_scan","data":[1]}`},
		read{data: `{"type":"network_scan"}`},
	)

	lines, err := newProcessor(t, nil, nil).Process(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Message classification failed: [MISSING_TYPE] missing or invalid type field",
		`Message classification failed: [UNKNOWN_TYPE] unknown message type: "bogus"`,
		"Message classification failed: [MISSING_HOST] missing or invalid host field",
		"Message classification failed: [INVALID_DATA] missing or invalid data field",
	}, lines)
}

func TestProcessEmptyConnection(t *testing.T) {
	lines, err := newProcessor(t, nil, nil).Process(context.Background(), newScriptedReader())
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestProcessZeroByteReadEndsStream(t *testing.T) {
	conn := newScriptedReader(
		read{data: ""},
		read{data: `{"type": "network_scan", "data": []}`},
	)

	lines, err := newProcessor(t, nil, nil).Process(context.Background(), conn)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, 1, conn.calls)
}

func TestProcessDataWithEOF(t *testing.T) {
	conn := newScriptedReader(read{data: `{"type": "network_scan", "data": ["h"]}`, err: io.EOF})

	lines, err := newProcessor(t, nil, nil).Process(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, []string{`Received network scan result with hosts: ["h"]`}, lines)
}

func TestProcessReadErrorDiscardsLines(t *testing.T) {
	boom := errors.New("connection reset")
	conn := newScriptedReader(
		read{data: `{"type": "network_scan", "data": ["h"]}`},
		read{err: boom},
	)
	m := metrics.New()

	lines, err := newProcessor(t, nil, m).Process(context.Background(), conn)
	require.Error(t, err)
	assert.Nil(t, lines)
	assert.ErrorIs(t, err, boom)

	var ioErr *messaging.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read", ioErr.Op)

	expected := `
# HELP scan_collector_listener_read_errors_total Total number of connections ended by a read error
# TYPE scan_collector_listener_read_errors_total counter
scan_collector_listener_read_errors_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"scan_collector_listener_read_errors_total"))
}

func TestProcessTrimsAndRepairsText(t *testing.T) {
	conn := newScriptedReader(read{data: "\r\n  {\"type\": \"network_scan\", \"data\": [\"a\xffb\"]}\n\n"})

	lines, err := newProcessor(t, nil, nil).Process(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, []string{"Received network scan result with hosts: [\"a�b\"]"}, lines)
}

func TestProcessBufferSize(t *testing.T) {
	conn := newScriptedReader()
	proc := messaging.NewProcessor(16, nil, nil, zap.NewNop().Sugar())

	_, err := proc.Process(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, 1024, conn.bufSize)

	conn = newScriptedReader()
	proc = messaging.NewProcessor(4096, nil, nil, zap.NewNop().Sugar())
	_, err = proc.Process(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, 4096, conn.bufSize)
}

func TestProcessCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn := newScriptedReader(read{data: `{"type": "network_scan", "data": []}`})
	lines, err := newProcessor(t, nil, nil).Process(ctx, conn)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, lines)
	assert.Equal(t, 0, conn.calls)
}

func TestProcessPublishesClassifiedMessages(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)

	gomock.InOrder(
		sink.EXPECT().PublishMessage(gomock.Any(), messaging.NetworkScan{Hosts: []string{"10.0.0.1"}}).Return(nil),
		sink.EXPECT().PublishMessage(gomock.Any(), messaging.HostScan{Host: "10.0.0.1", Ports: []uint16{22}}).Return(nil),
	)

	conn := newScriptedReader(
		read{data: `{"type": "network_scan", "data": ["10.0.0.1"]}`},
		read{data: `not json`},
		read{data: `{"type": "host_scan", "host": "10.0.0.1", "data": [22]}`},
	)

	lines, err := newProcessor(t, sink, nil).Process(context.Background(), conn)
	require.NoError(t, err)
	assert.Len(t, lines, 3)
}

func TestProcessSurvivesPublishFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)
	sink.EXPECT().PublishMessage(gomock.Any(), gomock.Any()).Return(errors.New("broker down")).Times(2)

	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New()
	proc := messaging.NewProcessor(1024, sink, m, zap.New(core).Sugar())

	conn := newScriptedReader(
		read{data: `{"type": "network_scan", "data": ["10.0.0.1"]}`},
		read{data: `{"type": "network_scan", "data": ["10.0.0.2"]}`},
	)

	lines, err := proc.Process(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`Received network scan result with hosts: ["10.0.0.1"]`,
		`Received network scan result with hosts: ["10.0.0.2"]`,
	}, lines)

	assert.Equal(t, 2, logs.FilterMessage("Failed to publish message").Len())
	assert.Equal(t, 2, logs.FilterMessage("Scan report received").Len())

	expected := `
# HELP scan_collector_messages_publish_errors_total Total number of classified messages that could not be forwarded
# TYPE scan_collector_messages_publish_errors_total counter
scan_collector_messages_publish_errors_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"scan_collector_messages_publish_errors_total"))
}

func TestProcessLogsRejectedReports(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	proc := messaging.NewProcessor(1024, nil, nil, zap.New(core).Sugar())

	_, err := proc.Process(context.Background(), newScriptedReader(read{data: `{"type":"bogus","data":[]}`}))
	require.NoError(t, err)

	rejected := logs.FilterMessage("Scan report rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zap.WarnLevel, rejected[0].Level)
	assert.Equal(t, string(messaging.CodeUnknownType), rejected[0].ContextMap()["code"])
}
