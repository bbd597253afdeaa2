// Package worker validates exam submissions arriving on Kafka and publishes
// the results.
package worker

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/biomarker-engine/internal/application/validation"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/pkg/errors"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// SourceKafka labels submissions validated by the worker.
const SourceKafka = "kafka"

// ExamMessage is the record consumed from the extracted-exam topic.
type ExamMessage struct {
	ExamID  string            `json:"exam_id"`
	Payload biomarker.Payload `json:"payload"`
}

// ResultEnvelope is the record published to the validated-exam topic.
type ResultEnvelope struct {
	ValidationID string                      `json:"validation_id"`
	ExamID       string                      `json:"exam_id"`
	ValidatedAt  time.Time                   `json:"validated_at"`
	Result       *biomarker.ValidationResult `json:"result"`
}

// DuplicateSink stores duplicate conflicts for manual review.
type DuplicateSink interface {
	SaveConflicts(ctx context.Context, examID string, conflicts []biomarker.DuplicateConflict) error
}

// Option customizes a Worker.
type Option func(*Worker)

// WithDuplicateSink persists duplicate conflicts of every validated exam.
func WithDuplicateSink(s DuplicateSink) Option {
	return func(w *Worker) { w.duplicates = s }
}

// WithClock overrides the time source stamped on results.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// Worker turns ExamMessages into ResultEnvelopes.
type Worker struct {
	svc         validation.Service
	publisher   kafka.Publisher
	outputTopic string
	duplicates  DuplicateSink
	logger      logging.Logger
	now         func() time.Time
	newID       func() string
}

// New builds a worker publishing to outputTopic.
func New(svc validation.Service, publisher kafka.Publisher, outputTopic string, logger logging.Logger, opts ...Option) *Worker {
	w := &Worker{
		svc:         svc,
		publisher:   publisher,
		outputTopic: outputTopic,
		logger:      logging.OrNop(logger).Named("worker"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Register subscribes the worker to inputTopic.
func (w *Worker) Register(c *kafka.Consumer, inputTopic string) {
	c.Subscribe(inputTopic, w.Handle)
}

// Handle validates one message.  Undecodable messages fail permanently;
// publish and engine-readiness failures are retried by the consumer.
func (w *Worker) Handle(ctx context.Context, msg *kafka.Message) error {
	exam, err := decode(msg)
	if err != nil {
		w.logger.Warn("undecodable exam message",
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset),
			logging.Err(err))
		return kafka.Permanent(err)
	}

	result, err := w.svc.Validate(ctx, &validation.ValidateInput{Payload: exam.Payload, Source: SourceKafka})
	if err != nil {
		if errors.IsValidation(err) || errors.IsCode(err, errors.ErrCodeBadRequest) {
			return kafka.Permanent(err)
		}
		return err
	}

	if w.duplicates != nil && len(result.Duplicates) > 0 {
		if err := w.duplicates.SaveConflicts(ctx, exam.ExamID, result.Duplicates); err != nil {
			// the published result still carries the conflicts
			w.logger.Warn("duplicate conflicts not persisted",
				logging.String("exam_id", exam.ExamID), logging.Err(err))
		}
	}

	envelope := ResultEnvelope{
		ValidationID: w.newID(),
		ExamID:       exam.ExamID,
		ValidatedAt:  w.now().UTC(),
		Result:       result,
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return kafka.Permanent(errors.Wrap(err, errors.ErrCodeSerialization, "encode validation result"))
	}
	if err := w.publisher.Publish(ctx, &kafka.ProducerMessage{
		Topic: w.outputTopic,
		Key:   []byte(exam.ExamID),
		Value: value,
		Headers: map[string]string{
			"validation_id": envelope.ValidationID,
			"success":       strconv.FormatBool(result.Success),
		},
	}); err != nil {
		return err
	}

	w.logger.Info("exam validated",
		logging.String("exam_id", exam.ExamID),
		logging.String("validation_id", envelope.ValidationID),
		logging.Int("processed", result.Stats.Processed),
		logging.Int("rejected", result.Stats.Rejected),
		logging.Int("duplicates", len(result.Duplicates)))
	return nil
}

func decode(msg *kafka.Message) (*ExamMessage, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeSerialization, "empty exam message")
	}
	var exam ExamMessage
	if err := json.Unmarshal(msg.Value, &exam); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode exam message")
	}
	if exam.ExamID == "" {
		exam.ExamID = exam.Payload.ExamID
	}
	if exam.ExamID == "" && len(msg.Key) > 0 {
		exam.ExamID = string(msg.Key)
	}
	if exam.ExamID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "exam message has no exam_id")
	}
	exam.Payload.ExamID = exam.ExamID
	return &exam, nil
}

