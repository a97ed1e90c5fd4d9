package bambu

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"bambu_bridge/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected is returned by Publish while the device session is down.
// Commands are never queued; a disconnected link fails fast.
var ErrNotConnected = errors.New("printer not connected")

const (
	mqttUsername   = "bblp"
	connectTimeout = 10 * time.Second
)

// LinkConfig carries the device session parameters.
type LinkConfig struct {
	Host       string
	Port       int
	Serial     string
	AccessCode string
	// RetryDelay is the fixed reconnect delay. There is deliberately no
	// backoff: the link talks to exactly one device on a local network.
	RetryDelay time.Duration
}

// ApplyFunc receives translated telemetry updates from the receive loop.
type ApplyFunc func(updates Update)

// Link owns the vendor telemetry/command MQTT session: connect, subscribe,
// receive loop, reconnect on failure, publish.
type Link struct {
	cfg   LinkConfig
	apply ApplyFunc
	log   *logger.Logger

	mu        sync.RWMutex
	client    mqtt.Client
	connected bool
}

func NewLink(cfg LinkConfig, apply ApplyFunc, log *logger.Logger) *Link {
	if cfg.Port == 0 {
		cfg.Port = 8883
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	return &Link{cfg: cfg, apply: apply, log: log}
}

// Connected reports whether the session is currently streaming.
func (l *Link) Connected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connected
}

// Run keeps the device session alive until ctx is cancelled. With no serial
// configured it runs a local telemetry simulation instead, so the dashboard
// works without hardware.
func (l *Link) Run(ctx context.Context) {
	if l.cfg.Serial == "" {
		l.log.Warnw("no printer serial configured, running in mock mode")
		l.runMock(ctx)
		return
	}

	for {
		err := l.connectAndStream(ctx)
		if ctx.Err() != nil {
			return
		}
		l.log.Errorw("printer link lost", "err", err, "retry_in", l.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.cfg.RetryDelay):
		}
	}
}

// connectAndStream opens one MQTT session and blocks until it drops or ctx
// is cancelled. The returned error describes why the session ended.
func (l *Link) connectAndStream(ctx context.Context) error {
	lost := make(chan error, 1)

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("ssl://%s:%d", l.cfg.Host, l.cfg.Port)).
		SetUsername(mqttUsername).
		SetPassword(l.cfg.AccessCode).
		// The printer presents a self-signed certificate.
		SetTLSConfig(&tls.Config{InsecureSkipVerify: true}).
		SetAutoReconnect(false).
		SetCleanSession(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			select {
			case lost <- err:
			default:
			}
		})

	client := mqtt.NewClient(opts)
	l.log.Infow("connecting to printer", "host", l.cfg.Host, "port", l.cfg.Port)

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.New("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	reportTopic := fmt.Sprintf("device/%s/report", l.cfg.Serial)
	sub := client.Subscribe(reportTopic, 0, l.handleMessage)
	sub.Wait()
	if err := sub.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("subscribe %s: %w", reportTopic, err)
	}

	l.setClient(client, true)
	l.log.Infow("printer link streaming", "topic", reportTopic)

	defer func() {
		l.setClient(nil, false)
		client.Disconnect(250)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-lost:
		return err
	}
}

func (l *Link) setClient(c mqtt.Client, connected bool) {
	l.mu.Lock()
	l.client = c
	l.connected = connected
	l.mu.Unlock()
}

// handleMessage decodes one report frame. A malformed frame is dropped and
// never terminates the receive loop.
func (l *Link) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var payload map[string]any
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		l.log.Debugw("dropping malformed telemetry frame", "err", err)
		return
	}

	data, ok := payload["print"].(map[string]any)
	if !ok {
		return
	}
	updates := TranslateTelemetry(data)
	if len(updates) > 0 && l.apply != nil {
		l.apply(updates)
	}
}

// Publish serializes a command onto the device request topic.
// Fire-and-forget: QoS 0, no ack correlation, no queuing while down.
func (l *Link) Publish(req Request) error {
	l.mu.RLock()
	client, connected := l.client, l.connected
	l.mu.RUnlock()

	if !connected || client == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	topic := fmt.Sprintf("device/%s/request", l.cfg.Serial)
	l.log.Debugw("publishing command", "topic", topic, "payload", string(payload))
	client.Publish(topic, 0, false, payload)
	return nil
}

// PublishAll sends each request in order, stopping at the first failure.
func (l *Link) PublishAll(reqs []Request) error {
	for _, req := range reqs {
		if err := l.Publish(req); err != nil {
			return err
		}
	}
	return nil
}
