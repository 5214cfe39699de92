// Package publisher forwards classified scan reports to RabbitMQ.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/config"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/messaging"
)

const (
	eventSource    = "/collectors/scan-collector"
	publishTimeout = 5 * time.Second

	EventNetworkScanReceived = "discovery.network_scan.received"
	EventHostScanReceived    = "discovery.host_scan.received"

	RoutingKeyNetworkScan = "scan.network"
	RoutingKeyHostScan    = "scan.host"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends CloudEvents to RabbitMQ. It implements messaging.Sink.
type Publisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	logger   *zap.SugaredLogger
}

var _ messaging.Sink = (*Publisher)(nil)

// CloudEvent represents the CloudEvents 1.0 specification structure.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	ID              string      `json:"id"`
	Time            string      `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`
}

// NetworkScanData is the payload of a network scan event.
type NetworkScanData struct {
	Hosts []string `json:"hosts"`
}

// HostScanData is the payload of a host scan event.
type HostScanData struct {
	Host      string   `json:"host"`
	OpenPorts []uint16 `json:"open_ports"`
}

// New creates a new Publisher connected to RabbitMQ.
func New(cfg config.RabbitMQConfig, logger *zap.SugaredLogger) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p := newPublisher(ch, cfg.Exchange, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, logger *zap.SugaredLogger) *Publisher {
	if exchange == "" {
		exchange = "discovery.events"
	}
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}
}

// Close closes the RabbitMQ connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishMessage publishes one classified report as a CloudEvent.
func (p *Publisher) PublishMessage(ctx context.Context, msg messaging.Message) error {
	switch m := msg.(type) {
	case messaging.NetworkScan:
		event := p.createEvent(EventNetworkScanReceived, NetworkScanData{Hosts: m.Hosts})
		return p.publish(ctx, event, RoutingKeyNetworkScan)
	case messaging.HostScan:
		event := p.createEvent(EventHostScanReceived, HostScanData{Host: m.Host, OpenPorts: m.Ports})
		return p.publish(ctx, event, RoutingKeyHostScan)
	default:
		return fmt.Errorf("unsupported message kind %q", msg.Kind())
	}
}

func (p *Publisher) createEvent(eventType string, data interface{}) CloudEvent {
	return CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          eventSource,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC().Format(time.RFC3339),
		DataContentType: "application/json",
		Data:            data,
	}
}

func (p *Publisher) publish(ctx context.Context, event CloudEvent, routingKey string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/cloudevents+json",
			Body:        body,
			MessageId:   event.ID,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debugw("Event published",
		"type", event.Type,
		"id", event.ID,
		"routing_key", routingKey,
	)

	return nil
}
