// Package bridge owns the per-source lifecycle: it subscribes to inbound
// image and status topics, drives processing for each message, and
// publishes results, events, availability and autodiscovery back onto the
// bus.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/your-org/yaic/internal/classify"
	"github.com/your-org/yaic/internal/config"
	"github.com/your-org/yaic/internal/discovery"
	"github.com/your-org/yaic/internal/observability"
	"github.com/your-org/yaic/internal/processor"
	"github.com/your-org/yaic/pkg/dto"
)

const publishTimeout = 2 * time.Second

// Publisher abstracts the outbound side of the bus connection.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Processor handles one inbound message for a source.
type Processor interface {
	ProcessMessage(ctx context.Context, payload []byte, sourceID string) (*processor.Result, error)
}

// EventSink receives classification events for live distribution.
type EventSink interface {
	BroadcastEvent(event *dto.WSEvent)
}

// Controller is the bridge's state machine. It is the only writer of the
// known-sources registry; registration is a one-shot Unknown to Known
// transition per source for the process lifetime.
type Controller struct {
	cfg     *config.Config
	proc    Processor
	version string
	sink    EventSink

	client mqtt.Client
	pub    Publisher
	runCtx context.Context

	mu    sync.Mutex
	known map[string]struct{}
}

// New creates a Controller. sink may be nil when no live feed is wanted.
func New(cfg *config.Config, proc Processor, version string, sink EventSink) *Controller {
	return &Controller{
		cfg:     cfg,
		proc:    proc,
		version: version,
		sink:    sink,
		known:   make(map[string]struct{}),
	}
}

// Connect establishes the MQTT session. Subscriptions and discovery
// republication happen in the OnConnect handler so they survive broker
// reconnects.
func (c *Controller) Connect(ctx context.Context) error {
	c.runCtx = ctx

	broker := fmt.Sprintf("tcp://%s:%d", c.cfg.MQTT.Host, c.cfg.MQTT.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("yaic-" + uuid.NewString()[:8])
	opts.SetKeepAlive(60 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetOrderMatters(true)

	opts.OnConnect = c.onConnect
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", broker)
	}

	c.client = mqtt.NewClient(opts)
	c.pub = &mqttPublisher{client: c.client}

	slog.Info("connecting to mqtt broker", "broker", broker)

	token := c.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

func (c *Controller) onConnect(client mqtt.Client) {
	slog.Info("mqtt connected, subscribing", "topic_in", c.cfg.MQTT.TopicIn)

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		c.HandleInbound(msg.Topic(), msg.Payload())
	}

	if token := client.Subscribe(c.cfg.MQTT.TopicIn, 1, handler); token.Wait() && token.Error() != nil {
		slog.Error("subscribe failed", "topic", c.cfg.MQTT.TopicIn, "error", token.Error())
	}
	statusPattern := discovery.StatusTopic(c.cfg.MQTT.TopicStatus, "+")
	if token := client.Subscribe(statusPattern, 1, handler); token.Wait() && token.Error() != nil {
		slog.Error("subscribe failed", "topic", statusPattern, "error", token.Error())
	}

	// Discovery descriptors are retained, but republish for sources seen
	// before a broker restart wiped them.
	for _, sourceID := range c.Sources() {
		c.publishDiscovery(sourceID)
	}
}

// HandleInbound routes one bus message. A classification topic triggers
// registration and processing; a status topic triggers registration only;
// anything else is ignored with a diagnostic.
func (c *Controller) HandleInbound(topic string, payload []byte) {
	sourceID, ok := discovery.ParseInputTopic(topic)
	if !ok {
		if statusSource, ok := discovery.ParseStatusTopic(c.cfg.MQTT.TopicStatus, topic); ok {
			c.registerSource(statusSource)
		} else {
			slog.Warn("ignoring message on unexpected topic", "topic", topic)
		}
		return
	}

	c.registerSource(sourceID)
	c.handleClassification(sourceID, payload)
}

func (c *Controller) handleClassification(sourceID string, payload []byte) {
	observability.MessagesProcessed.WithLabelValues(sourceID).Inc()
	c.publishOperation(sourceID, dto.OpProcessing)

	result, err := c.proc.ProcessMessage(c.ctx(), payload, sourceID)
	if err != nil {
		slog.Error("failed to process message", "source", sourceID, "error", err)
		observability.ProcessingErrors.WithLabelValues(sourceID).Inc()
		c.publishOperation(sourceID, dto.OpError)
		return
	}

	output, err := json.Marshal(result.Payload)
	if err != nil {
		slog.Error("failed to serialize output payload", "source", sourceID, "error", err)
		observability.ProcessingErrors.WithLabelValues(sourceID).Inc()
		c.publishOperation(sourceID, dto.OpError)
		return
	}

	event := c.buildEvent(result, sourceID)
	eventPayload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to serialize event payload", "source", sourceID, "error", err)
		observability.ProcessingErrors.WithLabelValues(sourceID).Inc()
		c.publishOperation(sourceID, dto.OpError)
		return
	}

	c.publish(discovery.OutputTopic(c.cfg.MQTT.TopicOut, sourceID), 1, false, output)
	c.publish(discovery.ImageTopic(sourceID), 1, true, result.ImageBytes)
	c.publish(discovery.EventTopic(sourceID), 1, false, eventPayload)
	c.publishOperation(sourceID, dto.OpIdle)

	if c.sink != nil {
		c.sink.BroadcastEvent(&dto.WSEvent{Type: "classification", Source: sourceID, Data: event})
	}
}

func (c *Controller) buildEvent(result *processor.Result, sourceID string) dto.Event {
	people := result.People
	if people == nil {
		people = []classify.PersonDetail{}
	}
	return dto.Event{
		EventType:   "classified",
		Source:      sourceID,
		Label:       result.Payload.Label,
		Confidence:  result.Payload.Confidence,
		PersonCount: result.Payload.Person.Count,
		People:      people,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// registerSource performs the one-time Unknown to Known transition:
// check-and-register under one lock, then discovery plus online exactly
// once per source id.
func (c *Controller) registerSource(sourceID string) {
	c.mu.Lock()
	if _, exists := c.known[sourceID]; exists {
		c.mu.Unlock()
		return
	}
	c.known[sourceID] = struct{}{}
	count := len(c.known)
	c.mu.Unlock()

	observability.KnownSources.Set(float64(count))
	slog.Info("registering new source", "source", sourceID)

	c.publishDiscovery(sourceID)
	c.publishStatus(sourceID, "online")
}

func (c *Controller) publishDiscovery(sourceID string) {
	messages := discovery.Messages(c.cfg.MQTT.TopicOut, c.cfg.MQTT.TopicStatus, c.version, sourceID)
	for _, m := range messages {
		c.publish(m.Topic, m.QoS, m.Retain, m.Payload)
	}
}

func (c *Controller) publishStatus(sourceID, status string) {
	c.publish(discovery.StatusTopic(c.cfg.MQTT.TopicStatus, sourceID), 1, true, []byte(status))
}

func (c *Controller) publishOperation(sourceID, status string) {
	payload, err := json.Marshal(dto.OperationStatus{
		Source:    sourceID,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	c.publish(discovery.OperationTopic(c.cfg.MQTT.TopicStatus, sourceID), 1, false, payload)
}

func (c *Controller) publish(topic string, qos byte, retained bool, payload []byte) {
	if c.pub == nil {
		return
	}
	if err := c.pub.Publish(topic, qos, retained, payload); err != nil {
		observability.PublishErrors.Inc()
		slog.Error("publish failed", "topic", topic, "error", err)
	}
}

// Sources returns the registered source ids in sorted order.
func (c *Controller) Sources() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	sources := make([]string, 0, len(c.known))
	for id := range c.known {
		sources = append(sources, id)
	}
	sort.Strings(sources)
	return sources
}

// Connected reports whether the bus session is up.
func (c *Controller) Connected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Publisher exposes the outbound side for collaborators such as the bus
// log handler. Valid only after Connect.
func (c *Controller) Publisher() Publisher {
	return c.pub
}

// Close publishes offline availability for every known source in sorted
// order, then releases the transport. The ordering matters: consumers
// must not be left seeing a stale "online" forever.
func (c *Controller) Close() {
	for _, sourceID := range c.Sources() {
		c.publishStatus(sourceID, "offline")
	}

	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		slog.Info("mqtt disconnected")
	}
}

func (c *Controller) ctx() context.Context {
	if c.runCtx != nil {
		return c.runCtx
	}
	return context.Background()
}

// mqttPublisher adapts the paho client to Publisher with a bounded wait
// per publish.
type mqttPublisher struct {
	client mqtt.Client
}

func (p *mqttPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}
