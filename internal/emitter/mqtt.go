package emitter

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"pulsescan-go/internal/types"
)

// Emitter publishes vitals and analyses to an MQTT broker for ward
// dashboards and recorders. Publishes use QoS 1 so a flaky link does
// not silently drop readings.
type Emitter struct {
	client mqtt.Client
	prefix string

	mu        sync.Mutex
	connected bool
	published uint64
	errors    uint64
}

type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Prefix   string
}

func Connect(opts Options) (*Emitter, error) {
	e := &Emitter{prefix: opts.Prefix}

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectRetry(true)
	clientOpts.SetConnectRetryInterval(2 * time.Second)
	clientOpts.SetMaxReconnectInterval(30 * time.Second)
	clientOpts.OnConnect = func(mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		log.Printf("mqtt connected to %s", opts.Broker)
	}
	clientOpts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		log.Printf("mqtt connection lost: %v", err)
	}

	e.client = mqtt.NewClient(clientOpts)
	token := e.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return e, nil
}

func (e *Emitter) PublishVitals(v types.Vitals) error {
	return e.publish(e.prefix+"/vitals", v)
}

func (e *Emitter) PublishAnalysis(a *types.SignalAnalysis) error {
	return e.publish(e.prefix+"/analysis", a)
}

func (e *Emitter) publish(topic string, payload any) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.countError()
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	token := e.client.Publish(topic, 1, false, data)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	e.mu.Lock()
	e.published++
	e.mu.Unlock()
	return nil
}

func (e *Emitter) Close() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
	}
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
}

// Stats feeds the status endpoint.
func (e *Emitter) Stats() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return map[string]any{
		"mqtt_connected":       e.connected,
		"mqtt_published_total": e.published,
		"mqtt_errors_total":    e.errors,
	}
}

func (e *Emitter) isConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

func (e *Emitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
