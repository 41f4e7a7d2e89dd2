package kafka

import (
	"context"
	"strings"
	"time"

	"github.com/marketwell/payhub/libs/logging"
	kafkago "github.com/segmentio/kafka-go"
)

// Consumer defines methods for consuming kafka messages.
type Consumer interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, messages ...kafkago.Message) error
	Close() error
}

// Reader is an implementation of the kafka.Consumer interface.
type Reader struct {
	kafkaReader *kafkago.Reader
}

// NewKafkaReader creates a new kafka reader for groupID and topic.
func NewKafkaReader(ctx context.Context, brokers, groupID, topic string) (*Reader, error) {
	logger := logging.Logger(ctx, "kafka.NewKafkaReader")

	kafkaReader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:       strings.Split(brokers, ","),
		RetentionTime: 10080 * time.Minute, // 7 Days
		GroupID:       groupID,
		Topic:         topic,
		Logger:        kafkago.LoggerFunc(logger.Printf),
	})

	return &Reader{
		kafkaReader: kafkaReader,
	}, nil
}

// ReadMessage - reads kafka messages
func (k *Reader) ReadMessage(ctx context.Context) (kafkago.Message, error) {
	return k.kafkaReader.ReadMessage(ctx)
}

// FetchMessage reads and return the next message.
// FetchMessage does not commit offsets automatically when using consumer groups.
func (k *Reader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	return k.kafkaReader.FetchMessage(ctx)
}

// CommitMessages commits the list of messages passed as argument.
func (k *Reader) CommitMessages(ctx context.Context, messages ...kafkago.Message) error {
	return k.kafkaReader.CommitMessages(ctx, messages...)
}

// Close closes the underlying reader.
func (k *Reader) Close() error {
	return k.kafkaReader.Close()
}

// NewDLQWriter - create a kafka writer for the dead letter topic
func NewDLQWriter(brokers, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:     kafkago.TCP(strings.Split(brokers, ",")...),
		Topic:    topic,
		Balancer: &kafkago.LeastBytes{},
	}
}
