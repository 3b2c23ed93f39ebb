package service

import (
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/fraglink-io/fraglink/internal/app/model"
)

// VisitPublisher publishes visit events to NATS JetStream.
type VisitPublisher struct {
	js nats.JetStreamContext
}

// NewVisitPublisher creates a new visit event publisher.
func NewVisitPublisher(js nats.JetStreamContext) *VisitPublisher {
	return &VisitPublisher{js: js}
}

// Publish sends one visit event to the stream.
func (p *VisitPublisher) Publish(event model.VisitEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.VisitStreamSubject, data)
	return err
}
