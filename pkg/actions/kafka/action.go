// Package kafka provides the action publishing one message to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/IBM/sarama"

	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

// ProducerFunc opens a synchronous producer on brokers.
type ProducerFunc func(brokers []string, config *sarama.Config) (sarama.SyncProducer, error)

type ActionFactory struct {
	newProducer ProducerFunc
}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{newProducer: sarama.NewSyncProducer}
}

// NewActionFactoryWithProducer builds actions on a custom producer constructor.
func NewActionFactoryWithProducer(newProducer ProducerFunc) *ActionFactory {
	return &ActionFactory{newProducer: newProducer}
}

func (*ActionFactory) ID() string { return "kafka-basic-publish" }

func (*ActionFactory) Name() string { return "Kafka publish" }

func (*ActionFactory) Description() string {
	return "Publishes a message with optional headers to a Kafka topic of the step target."
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic": map[string]any{
				"type":        "string",
				"description": "Destination topic.",
			},
			"payload": map[string]any{
				"description": "Message value. Strings are sent as is, other values as JSON.",
			},
			"key": map[string]any{
				"type":        "string",
				"description": "Optional message key.",
			},
			"headers": map[string]any{
				"type":                 "object",
				"description":          "Message headers.",
				"additionalProperties": map[string]any{"type": "string"},
			},
		},
		"required": []string{"topic", "payload"},
	}
}

func (f *ActionFactory) Create(_ context.Context, request protocol.ActionRequest) (protocol.Action, error) {
	return &Action{
		topic:       request.Inputs.String("topic"),
		key:         request.Inputs.String("key"),
		payload:     request.Inputs["payload"],
		headers:     request.Inputs.StringMap("headers"),
		target:      request.Target,
		newProducer: f.newProducer,
		logger:      request.Log().With(slog.String("action_type", "kafka-basic-publish")),
	}, nil
}

type Action struct {
	topic   string
	key     string
	payload any
	headers map[string]string
	target  *models.Target

	newProducer ProducerFunc
	logger      *slog.Logger

	mu       sync.Mutex
	producer sarama.SyncProducer
}

func (a *Action) ValidateInputs() []string {
	return protocol.NewValidation().
		Target(a.target).
		NotBlank("topic", a.topic).
		Check(a.payload != nil, "No payload provided").
		Errors()
}

func (a *Action) Execute(ctx context.Context) protocol.ActionResult {
	value, err := encode(a.payload)
	if err != nil {
		return protocol.Ko(err.Error())
	}

	producer, err := a.open()
	if err != nil {
		message := fmt.Sprintf("cannot connect to %s: %s", a.target.URL, err)
		a.logger.ErrorContext(ctx, message)

		return protocol.Ko(message)
	}

	defer a.Release()

	message := &sarama.ProducerMessage{
		Topic: a.topic,
		Value: sarama.ByteEncoder(value),
	}

	if a.key != "" {
		message.Key = sarama.StringEncoder(a.key)
	}

	for _, name := range slices.Sorted(maps.Keys(a.headers)) {
		message.Headers = append(message.Headers, sarama.RecordHeader{Key: []byte(name), Value: []byte(a.headers[name])})
	}

	partition, offset, err := producer.SendMessage(message)
	if err != nil {
		failure := fmt.Sprintf("cannot publish to topic %s: %s", a.topic, err)
		a.logger.ErrorContext(ctx, failure)

		return protocol.Ko(failure)
	}

	a.logger.InfoContext(ctx, fmt.Sprintf("Published message to %s (partition %d, offset %d)", a.topic, partition, offset))

	return protocol.Ok(map[string]any{
		"payload": a.payload,
		"headers": a.headers,
	})
}

// Release closes the producer. It is safe to call more than once.
func (a *Action) Release() {
	a.mu.Lock()
	producer := a.producer
	a.producer = nil
	a.mu.Unlock()

	if producer != nil {
		if err := producer.Close(); err != nil {
			a.logger.Warn("Failed to close producer", slog.Any("error", err))
		}
	}
}

func (a *Action) open() (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.ClientID = a.target.Property("client.id", "chutney")
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := a.newProducer(Brokers(a.target), config)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.producer = producer
	a.mu.Unlock()

	return producer, nil
}

// Brokers lists the target host followed by the comma separated "brokers" property.
func Brokers(target *models.Target) []string {
	var brokers []string

	if parsed, err := url.Parse(target.URL); err == nil && parsed.Host != "" {
		brokers = append(brokers, parsed.Host)
	}

	for _, broker := range strings.Split(target.Property("brokers", ""), ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}

	return brokers
}

func encode(payload any) ([]byte, error) {
	if text, ok := payload.(string); ok {
		return []byte(text), nil
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return encoded, nil
}
