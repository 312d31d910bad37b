package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Manish-basnet10/Blood-Donation/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	RequestCreated   = "request.created"
	RequestAccepted  = "request.accepted"
	RequestRejected  = "request.rejected"
	RequestCompleted = "request.completed"
	RequestExpired   = "request.expired"

	BroadcastCreated = "broadcast.created"

	AvailabilityChanged = "donor.availability_changed"
)

// Event payloads
type RequestCreatedEvent struct {
	RequestID   int64     `json:"request_id"`
	RecipientID int64     `json:"recipient_id"`
	DonorID     int64     `json:"donor_id"`
	BloodType   string    `json:"blood_type"`
	UnitsNeeded int       `json:"units_needed"`
	Urgency     string    `json:"urgency"`
	CreatedAt   time.Time `json:"created_at"`
}

type RequestAcceptedEvent struct {
	RequestID  int64     `json:"request_id"`
	DonorID    int64     `json:"donor_id"`
	AcceptedAt time.Time `json:"accepted_at"`
}

type RequestRejectedEvent struct {
	RequestID int64 `json:"request_id"`
	DonorID   int64 `json:"donor_id"`
}

type RequestCompletedEvent struct {
	RequestID   int64     `json:"request_id"`
	CompletedBy int64     `json:"completed_by"`
	CompletedAt time.Time `json:"completed_at"`
}

type RequestExpiredEvent struct {
	RequestID int64     `json:"request_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

type BroadcastCreatedEvent struct {
	BroadcastID string    `json:"broadcast_id"`
	HospitalID  int64     `json:"hospital_id"`
	BloodType   string    `json:"blood_type"`
	DonorCount  int       `json:"donor_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type AvailabilityChangedEvent struct {
	DonorID     int64 `json:"donor_id"`
	IsAvailable bool  `json:"is_available"`
}
