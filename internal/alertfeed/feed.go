// Package alertfeed announces newly created alerts on a message broker
// for the delivery layer. Announcing is best effort: a failed publish is
// logged and counted, the alert record itself is already stored.
package alertfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apiarylabs/hivewatch/internal/conf"
	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/apiarylabs/hivewatch/internal/metrics"
)

const (
	publishTimeout = 5 * time.Second
	queueSize      = 256
)

var (
	errQueueFull        = errors.New("publish queue full")
	errDispatcherClosed = errors.New("dispatcher closed")
)

// Publisher sends one alert to a broker.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, alert *entities.Alert) error
	Close() error
}

// New builds the publisher selected by cfg.Backend.
func New(cfg conf.FeedSettings, log logger.Logger) (Publisher, error) {
	switch cfg.Backend {
	case "", "none":
		return NopPublisher{}, nil
	case "mqtt":
		pub, err := NewMQTTPublisher(cfg.MQTT, log)
		if err != nil {
			return nil, err
		}
		return pub, nil
	case "kafka":
		pub, err := NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unsupported feed backend %q", cfg.Backend)
	}
}

func encode(alert *entities.Alert) ([]byte, error) {
	payload, err := json.Marshal(alert)
	if err != nil {
		return nil, fmt.Errorf("failed to encode alert %s: %w", alert.ID, err)
	}
	return payload, nil
}

// NopPublisher drops every alert.
type NopPublisher struct{}

func (NopPublisher) Name() string { return "none" }

func (NopPublisher) Publish(context.Context, *entities.Alert) error { return nil }

func (NopPublisher) Close() error { return nil }

// Dispatcher adapts a Publisher to the engine's alert handler. Alerts are
// queued and published by one background worker, so a slow broker never
// holds up an evaluation sweep.
type Dispatcher struct {
	pub     Publisher
	timeout time.Duration
	metrics *metrics.Metrics
	log     logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	done   chan struct{}
}

type queued struct {
	ctx   context.Context
	alert *entities.Alert
}

// NewDispatcher creates a Dispatcher and starts its worker. m may be nil.
// Close must be called to flush the queue.
func NewDispatcher(pub Publisher, m *metrics.Metrics, log logger.Logger) *Dispatcher {
	return newDispatcher(pub, m, log, queueSize)
}

func newDispatcher(pub Publisher, m *metrics.Metrics, log logger.Logger, size int) *Dispatcher {
	d := &Dispatcher{
		pub:     pub,
		timeout: publishTimeout,
		metrics: m,
		log:     log.Module("alertfeed"),
		queue:   make(chan queued, size),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Handle queues alert and returns at once. It never fails the caller: an
// alert that does not fit in the queue is logged and counted as a failed
// publish.
func (d *Dispatcher) Handle(ctx context.Context, alert *entities.Alert) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.failed(alert, errDispatcherClosed)
		return
	}
	// The sweep's context ends with the sweep; keep only its values.
	select {
	case d.queue <- queued{ctx: context.WithoutCancel(ctx), alert: alert}:
	default:
		d.failed(alert, errQueueFull)
	}
}

// Close stops accepting alerts and waits until the queued ones have been
// published. Each publish is bounded by the dispatcher timeout.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for item := range d.queue {
		d.publish(item.ctx, item.alert)
	}
}

func (d *Dispatcher) publish(ctx context.Context, alert *entities.Alert) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.pub.Publish(ctx, alert); err != nil {
		d.failed(alert, err)
		return
	}
	d.log.Debug("alert published",
		logger.String("backend", d.pub.Name()),
		logger.String("alert_id", alert.ID))
}

func (d *Dispatcher) failed(alert *entities.Alert, err error) {
	d.metrics.FeedFailure(d.pub.Name())
	d.log.Warn("failed to publish alert",
		logger.String("backend", d.pub.Name()),
		logger.String("alert_id", alert.ID),
		logger.String("hive_id", alert.HiveID),
		logger.Error(err))
}
