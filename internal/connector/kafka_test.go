package connector

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKafkaConfig(t *testing.T) {
	_, err := parseKafkaConfig(map[string]interface{}{"topic": "t"}, "source", "c")
	assert.EqualError(t, err, "kafka source requires brokers configuration")

	_, err = parseKafkaConfig(map[string]interface{}{"brokers": []interface{}{"b:9092"}}, "sink", "c")
	assert.EqualError(t, err, "kafka sink requires a topic configuration")

	c, err := parseKafkaConfig(map[string]interface{}{
		"brokers":       "a:9092, b:9092",
		"topic":         "events",
		"fromBeginning": true,
	}, "source", "streamsynth-consumer")
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Brokers)
	assert.Equal(t, "streamsynth-group", c.GroupID)
	assert.Equal(t, "streamsynth-consumer", c.ClientID)
	assert.True(t, c.FromBeginning)

	src, err := NewKafkaSource(map[string]interface{}{"brokers": []string{"a:9092"}, "topic": "events", "fromBeginning": true})
	require.NoError(t, err)
	rc := src.(*KafkaSource).readerConfig()
	assert.Equal(t, kafka.FirstOffset, rc.StartOffset)
	assert.Equal(t, "streamsynth-group", rc.GroupID)
}

func TestDecodeKafkaMessage(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	ev := decodeKafkaMessage(kafka.Message{Topic: "events", Partition: 2, Offset: 41, Time: ts, Value: []byte(`{"a":1}`)})
	assert.Equal(t, map[string]interface{}{
		"a": float64(1),
		KafkaMetadataField: map[string]interface{}{
			"topic":     "events",
			"partition": 2,
			"offset":    int64(41),
			"timestamp": int64(1700000000000),
		},
	}, ev)

	assert.Equal(t, "hello", decodeKafkaMessage(kafka.Message{Value: []byte("hello")}))
	assert.Equal(t, []interface{}{float64(1), float64(2)}, decodeKafkaMessage(kafka.Message{Value: []byte("[1,2]")}))
}

func TestEncodeKafkaValue(t *testing.T) {
	data, err := encodeKafkaValue(map[string]interface{}{"a": 1, KafkaMetadataField: map[string]interface{}{"offset": 3}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	data, err = encodeKafkaValue("raw text")
	require.NoError(t, err)
	assert.Equal(t, "raw text", string(data))

	data, err = encodeKafkaValue(42)
	require.NoError(t, err)
	assert.Equal(t, "42", string(data))
}
