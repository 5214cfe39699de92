package messaging

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/config"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/metrics"
)

//go:generate mockgen -source=processor.go -destination=mocks/mock_sink.go -package=mocks

// Sink receives every successfully classified message.
type Sink interface {
	PublishMessage(ctx context.Context, msg Message) error
}

// Processor turns the reads of one connection into status lines.
//
// Each read is treated as exactly one message. Messages split across reads,
// or several messages in one read, are not reassembled.
type Processor struct {
	bufferSize int
	sink       Sink
	metrics    *metrics.Metrics
	logger     *zap.SugaredLogger
}

// NewProcessor creates a Processor. sink and m may be nil.
func NewProcessor(bufferSize int, sink Sink, m *metrics.Metrics, logger *zap.SugaredLogger) *Processor {
	if bufferSize < config.MinBufferSize {
		bufferSize = config.MinBufferSize
	}
	return &Processor{
		bufferSize: bufferSize,
		sink:       sink,
		metrics:    m,
		logger:     logger,
	}
}

// Process reads conn until end of stream and returns one status line per
// non-empty read. A classification failure becomes a status line and reading
// continues. A read error ends processing with an *IOError and the collected
// lines are discarded.
func (p *Processor) Process(ctx context.Context, conn io.Reader) ([]string, error) {
	return p.process(ctx, conn, p.logger)
}

func (p *Processor) process(ctx context.Context, conn io.Reader, log *zap.SugaredLogger) ([]string, error) {
	buf := make([]byte, p.bufferSize)
	lines := make([]string, 0)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := conn.Read(buf)
		if n > 0 {
			lines = append(lines, p.handle(ctx, buf[:n], log))
		}

		// A zero-byte read is end of stream, with or without io.EOF.
		if errors.Is(err, io.EOF) || (n == 0 && err == nil) {
			return lines, nil
		}
		if err != nil {
			p.metrics.ReadFailed()
			return nil, &IOError{Op: "read", Err: err}
		}
	}
}

func (p *Processor) handle(ctx context.Context, chunk []byte, log *zap.SugaredLogger) string {
	p.metrics.MessageReceived()

	text := strings.TrimSpace(decodeLossy(chunk))

	msg, err := Classify(text)
	if err != nil {
		code := CodeInvalidEncoding
		var ce *ClassificationError
		if errors.As(err, &ce) {
			code = ce.Code
		}
		p.metrics.ClassificationFailed(string(code))

		line := FailureLine(err)
		log.Warnw("Scan report rejected", "code", string(code), "status", line)
		return line
	}

	p.metrics.MessageClassified(string(msg.Kind()))

	if p.sink != nil {
		if err := p.sink.PublishMessage(ctx, msg); err != nil {
			p.metrics.PublishFailed()
			log.Errorw("Failed to publish message", "kind", string(msg.Kind()), "error", err)
		}
	}

	line := StatusLine(msg)
	log.Infow("Scan report received", "kind", string(msg.Kind()), "status", line)
	return line
}
