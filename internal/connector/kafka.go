package connector

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"streamsynth/internal/model"
	"streamsynth/pkg/utils"
)

// KafkaMetadataField is attached to JSON object events read from Kafka
// and removed again by the Kafka sink.
const KafkaMetadataField = "_kafka"

// KafkaConfig holds the options shared by the Kafka source and sink.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	GroupID       string
	ClientID      string
	FromBeginning bool
}

func parseKafkaConfig(cfg map[string]interface{}, role, defaultClientID string) (KafkaConfig, error) {
	c := KafkaConfig{
		Brokers:       utils.StringsOption(cfg, "brokers"),
		Topic:         utils.StringOption(cfg, "topic", ""),
		GroupID:       utils.StringOption(cfg, "groupId", "streamsynth-group"),
		ClientID:      utils.StringOption(cfg, "clientId", defaultClientID),
		FromBeginning: utils.BoolOption(cfg, "fromBeginning", false),
	}
	if len(c.Brokers) == 0 {
		return c, errors.Errorf("kafka %s requires brokers configuration", role)
	}
	if c.Topic == "" {
		return c, errors.Errorf("kafka %s requires a topic configuration", role)
	}
	return c, nil
}

// ------------------- Kafka Source -------------------

// KafkaSource consumes a topic as part of a consumer group. JSON values
// become events; other values are delivered as strings. Offsets are
// committed after the event has been handed to the engine.
type KafkaSource struct {
	config KafkaConfig
	runner

	mu     sync.Mutex
	reader *kafka.Reader
}

// NewKafkaSource reads brokers, topic, groupId, clientId and fromBeginning.
func NewKafkaSource(cfg map[string]interface{}) (model.Source, error) {
	c, err := parseKafkaConfig(cfg, "source", "streamsynth-consumer")
	if err != nil {
		return nil, err
	}
	return &KafkaSource{config: c}, nil
}

func (s *KafkaSource) readerConfig() kafka.ReaderConfig {
	start := kafka.LastOffset
	if s.config.FromBeginning {
		start = kafka.FirstOffset
	}
	return kafka.ReaderConfig{
		Brokers:     s.config.Brokers,
		GroupID:     s.config.GroupID,
		Topic:       s.config.Topic,
		StartOffset: start,
		MaxWait:     500 * time.Millisecond,
		Dialer: &kafka.Dialer{
			ClientID:  s.config.ClientID,
			Timeout:   10 * time.Second,
			DualStack: true,
		},
	}
}

func (s *KafkaSource) Start(ctx context.Context, emit model.Emitter) error {
	reader := kafka.NewReader(s.readerConfig())
	s.mu.Lock()
	s.reader = reader
	s.mu.Unlock()

	return s.launch(ctx, func(ctx context.Context) {
		defer s.closeReader()

		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 0
		for {
			msg, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				emit.Error(errors.Wrap(err, "fetch kafka message"))
				select {
				case <-ctx.Done():
					return
				case <-time.After(bo.NextBackOff()):
				}
				continue
			}
			bo.Reset()

			emit.Data(decodeKafkaMessage(msg))
			if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				emit.Error(errors.Wrapf(err, "commit offset %d on %s/%d", msg.Offset, msg.Topic, msg.Partition))
			}
		}
	})
}

func (s *KafkaSource) Stop(ctx context.Context) error {
	err := s.halt(ctx)
	s.closeReader()
	return err
}

func (s *KafkaSource) closeReader() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader != nil {
		s.reader.Close()
		s.reader = nil
	}
}

func decodeKafkaMessage(msg kafka.Message) model.Event {
	var ev interface{}
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return string(msg.Value)
	}
	if obj, ok := ev.(map[string]interface{}); ok {
		obj[KafkaMetadataField] = map[string]interface{}{
			"topic":     msg.Topic,
			"partition": msg.Partition,
			"offset":    msg.Offset,
			"timestamp": msg.Time.UnixMilli(),
		}
	}
	return ev
}

// ------------------- Kafka Sink -------------------

// KafkaSink produces one message per event. Object events lose their
// Kafka metadata field; string events are written verbatim.
type KafkaSink struct {
	config KafkaConfig
	writer *kafka.Writer

	mu     sync.Mutex
	closed bool
}

// NewKafkaSink reads brokers, topic and clientId.
func NewKafkaSink(cfg map[string]interface{}) (model.Sink, error) {
	c, err := parseKafkaConfig(cfg, "sink", "streamsynth-producer")
	if err != nil {
		return nil, err
	}
	return &KafkaSink{
		config: c,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(c.Brokers...),
			Topic:        c.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
			Transport:    &kafka.Transport{ClientID: c.ClientID},
		},
	}, nil
}

func (s *KafkaSink) Write(ctx context.Context, ev model.Event) error {
	value, err := encodeKafkaValue(ev)
	if err != nil {
		return err
	}
	return errors.Wrap(s.writer.WriteMessages(ctx, kafka.Message{Value: value}), "produce kafka message")
}

func (s *KafkaSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}

func encodeKafkaValue(ev model.Event) ([]byte, error) {
	switch v := ev.(type) {
	case string:
		return []byte(v), nil
	case map[string]interface{}:
		if _, ok := v[KafkaMetadataField]; ok {
			clean := make(map[string]interface{}, len(v)-1)
			for k, val := range v {
				if !strings.EqualFold(k, KafkaMetadataField) {
					clean[k] = val
				}
			}
			ev = clean
		}
	}
	data, err := json.Marshal(ev)
	return data, errors.Wrap(err, "encode event")
}
