package emitter

// #region imports
import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/analysis"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/batch"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/config"
	"github.com/GDogMcCoy/PanDerm-IOS-App/go-engine/internal/model"
)

// #endregion

// #region emitter

// Emitter publishes engine events to an MQTT broker.
type Emitter struct {
	cfg    config.MQTTConfig
	client mqtt.Client

	mu        sync.RWMutex
	connected bool
	published map[string]uint64 // count per topic
	errors    uint64
}

// New creates an emitter for the given broker settings.
func New(cfg config.MQTTConfig) *Emitter {
	return &Emitter{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// Connect establishes the broker connection and keeps it alive.
func (e *Emitter) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.cfg.Broker)
	opts.SetClientID(e.cfg.ClientID)
	if e.cfg.Username != "" {
		opts.SetUsername(e.cfg.Username)
		opts.SetPassword(e.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		log.Printf("[emitter] connected to %s as %s", e.cfg.Broker, e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		log.Printf("[emitter] connection lost, auto-reconnecting: %v", err)
	}

	e.client = mqtt.NewClient(opts)
	token := e.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()
	return nil
}

// Disconnect closes the broker connection.
func (e *Emitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		log.Printf("[emitter] disconnected")
	}
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
}

// #endregion

// #region events

// analysisEvent is the broker summary of one finished analysis.
type analysisEvent struct {
	RequestID     string                `json:"requestId"`
	TopLabel      analysis.Label        `json:"topLabel"`
	TopCategory   analysis.Category     `json:"topCategory"`
	TopConfidence float32               `json:"topConfidence"`
	RiskScore     float32               `json:"riskScore"`
	ProducedBy    analysis.ProviderKind `json:"producedBy"`
	Warnings      int                   `json:"warnings"`
	TotalMS       int64                 `json:"totalMs"`
}

// progressEvent is the broker view of one completed batch item.
type progressEvent struct {
	RequestID string `json:"requestId"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    bool   `json:"failed"`
}

// PublishResult announces one finished analysis.
func (e *Emitter) PublishResult(res analysis.Result) error {
	top := res.Top()
	return e.publish(e.cfg.TopicPrefix+"/analysis", analysisEvent{
		RequestID:     res.RequestID,
		TopLabel:      top.Label,
		TopCategory:   top.Category,
		TopConfidence: top.Confidence,
		RiskScore:     res.RiskScore,
		ProducedBy:    res.Provenance.ProducedBy,
		Warnings:      len(res.Warnings),
		TotalMS:       res.Provenance.TotalDuration.Milliseconds(),
	})
}

// PublishBatchProgress announces one completed batch item.
func (e *Emitter) PublishBatchProgress(p batch.Progress) error {
	return e.publish(e.cfg.TopicPrefix+"/batch/progress", progressEvent{
		RequestID: p.RequestID,
		Index:     p.Index,
		Total:     p.Total,
		Completed: p.Completed,
		Failed:    p.Err != nil,
	})
}

// PublishModelEvent announces a model lifecycle transition.
func (e *Emitter) PublishModelEvent(ev model.Event) error {
	return e.publish(e.cfg.TopicPrefix+"/model/status", ev)
}

// #endregion

// #region publish

func (e *Emitter) publish(topic string, event any) error {
	if !e.isConnected() {
		e.fail()
		return fmt.Errorf("mqtt not connected")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		e.fail()
		return fmt.Errorf("marshal event: %w", err)
	}

	token := e.client.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.fail()
		return fmt.Errorf("publish timeout on %s", topic)
	}
	if err := token.Error(); err != nil {
		e.fail()
		return fmt.Errorf("publish on %s: %w", topic, err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()
	return nil
}

func (e *Emitter) fail() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

func (e *Emitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

// #endregion

// #region stats

// Stats contains emitter counters.
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// Stats returns a copy of the emitter counters.
func (e *Emitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

// #endregion
