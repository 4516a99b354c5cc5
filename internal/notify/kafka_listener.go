package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/gammazero/workerpool"
	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bookinventory/internal/book"
)

const (
	HeaderEventType = "event-type"
	HeaderEventID   = "event-id"

	defaultWriteTimeout = 10 * time.Second
)

var jsonFast = jsoniter.ConfigFastest

// message is the wire format of a forwarded event.
type message struct {
	Type string     `json:"type"`
	Data book.Event `json:"data"`
}

// NewKafkaWriter builds a writer for topic. Messages with the same key
// (the book id) land on the same partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// KafkaListener forwards events to Kafka. Notify encodes the event and hands
// the write to a worker pool, so delivery is asynchronous and best effort.
type KafkaListener struct {
	writer  MessageWriter
	pool    *workerpool.WorkerPool
	timeout time.Duration
	logger  *zap.Logger
}

func NewKafkaListener(writer MessageWriter, workers int, logger *zap.Logger) *KafkaListener {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaListener{
		writer:  writer,
		pool:    workerpool.New(workers),
		timeout: defaultWriteTimeout,
		logger:  logger.Named("kafka"),
	}
}

func (l *KafkaListener) Notify(ctx context.Context, e book.Event) error {
	msg, err := encodeMessage(e)
	if err != nil {
		return err
	}

	// The write outlives the request that triggered it.
	ctx = context.WithoutCancel(ctx)
	l.pool.Submit(func() {
		writeCtx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()
		if err := l.writer.WriteMessages(writeCtx, msg); err != nil {
			l.logger.Error("forward event",
				zap.String("event", e.Name()),
				zap.String("event_id", e.Metadata().ID),
				zap.Int64("book_id", e.Subject().ID),
				zap.Error(err),
			)
		}
	})
	return nil
}

// Close waits for queued writes and closes the writer.
func (l *KafkaListener) Close() error {
	l.pool.StopWait()
	return l.writer.Close()
}

func encodeMessage(e book.Event) (kafka.Message, error) {
	payload, err := jsonFast.Marshal(message{Type: e.Name(), Data: e})
	if err != nil {
		return kafka.Message{}, err
	}
	meta := e.Metadata()
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(e.Subject().ID, 10)),
		Value: payload,
		Time:  meta.OccurredAt,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(e.Name())},
			{Key: HeaderEventID, Value: []byte(meta.ID)},
		},
	}, nil
}
