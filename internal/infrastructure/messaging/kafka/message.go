// Package kafka carries exam submissions into the validation worker and its
// results back out, on top of segmentio/kafka-go.
package kafka

import (
	"context"
	stderrors "errors"
	"time"
)

// Message is a consumed record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is a record to publish.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one message.  Returning a permanent error skips
// the retries and dead-letters the message at once.
type MessageHandler func(ctx context.Context, msg *Message) error

// Publisher is the publishing side of a Producer.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return stderrors.As(err, &p)
}
