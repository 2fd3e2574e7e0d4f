package domain

import "time"

// Event types
const (
	EventTypeEntityRegistered     = "entity.registered"
	EventTypeEntityCodeChanged    = "entity.code_changed"
	EventTypeTransactionSubmitted = "transaction.submitted"
	EventTypeTransactionPending   = "transaction.pending"
	EventTypeTransactionFinalized = "transaction.finalized"
	EventTypeTransactionCancelled = "transaction.cancelled"
	EventTypeTransactionReversed  = "transaction.reversed"
)

// Aggregate types
const (
	AggregateTypeEntity      = "entity"
	AggregateTypeTransaction = "transaction"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// NewTransactionEvent builds the outbox record for a lifecycle change.
// balance is only set for events emitted inside a finalization.
func NewTransactionEvent(id, eventType string, t *Transaction, balance string, now time.Time) *OutboxEvent {
	payload := map[string]any{
		"transaction_id": t.ID,
		"entity_id":      t.EntityID,
		"type":           string(t.Type),
		"amount":         t.Amount.String(),
		"status":         string(t.Status),
		"ref_no":         t.RefNo,
	}
	if t.CorrectionOf != nil {
		payload["correction_of"] = *t.CorrectionOf
	}
	if balance != "" {
		payload["balance"] = balance
	}

	return &OutboxEvent{
		ID:            id,
		AggregateID:   t.ID,
		AggregateType: AggregateTypeTransaction,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	}
}

// NewEntityEvent builds the outbox record for an entity change.
func NewEntityEvent(id, eventType string, e *Entity, now time.Time) *OutboxEvent {
	payload := map[string]any{
		"entity_id": e.ID,
		"kind":      string(e.Kind),
	}
	if e.Code != nil {
		payload["code"] = *e.Code
	}

	return &OutboxEvent{
		ID:            id,
		AggregateID:   e.ID,
		AggregateType: AggregateTypeEntity,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	}
}
