// Package gateway moves group session traffic between shards: outbound
// through a bounded forward queue and a Transfer, inbound through the AMQP
// consumer.
package gateway

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/linesmerrill/region-chat-api/models"
)

// EventType names the envelope published for a forwarded session message
const EventType = "groupchat.session.forwarded.v1"

// Transfer carries a message to the shards holding its recipients
type Transfer interface {
	Send(ctx context.Context, msg models.RoutedMessage, recipients []uuid.UUID) error
}

// Meta describes a published envelope
type Meta struct {
	ID       string    `json:"id"`
	Producer string    `json:"producer,omitempty"`
	Time     time.Time `json:"time"`
	Type     string    `json:"type"`
}

// Delivery is a forwarded message and the agents it is addressed to
type Delivery struct {
	Message    models.RoutedMessage `json:"message"`
	Recipients []uuid.UUID          `json:"recipients"`
}

// Envelope is the document exchanged between shards
type Envelope struct {
	Meta Meta     `json:"meta"`
	Data Delivery `json:"data"`
}

func newEnvelope(regionHandle uint64, msg models.RoutedMessage, recipients []uuid.UUID) Envelope {
	return Envelope{
		Meta: Meta{
			ID:       uuid.NewString(),
			Producer: strconv.FormatUint(regionHandle, 10),
			Time:     time.Now().UTC(),
			Type:     EventType,
		},
		Data: Delivery{Message: msg, Recipients: recipients},
	}
}
