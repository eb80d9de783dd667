package repository

import (
	"context"

	"StratEq/internal/domain/models"
	pkgkafka "StratEq/pkg/kafka"
)

// JobEventsTopic carries one message per job state transition, keyed by job
// id so consumers see each job's transitions in order.
const JobEventsTopic = "strateq.job-events"

// KafkaJobEvents implements EventPublisher on Kafka for dashboards and
// downstream automation watching job lifecycles.
type KafkaJobEvents struct {
	producer *pkgkafka.Producer
}

func NewKafkaJobEvents(producer *pkgkafka.Producer) *KafkaJobEvents {
	return &KafkaJobEvents{producer: producer}
}

func (p *KafkaJobEvents) PublishJobEvent(ctx context.Context, job *models.Job) error {
	// Result payloads can be large; the event carries state only.
	event := job.Clone()
	event.Result = nil
	return p.producer.Publish(ctx, JobEventsTopic, []byte(job.ID), event)
}

func (p *KafkaJobEvents) Close() error {
	return p.producer.Close()
}

// NoopJobEvents drops every event; used when Kafka is disabled.
type NoopJobEvents struct{}

func (NoopJobEvents) PublishJobEvent(context.Context, *models.Job) error { return nil }
func (NoopJobEvents) Close() error                                       { return nil }
