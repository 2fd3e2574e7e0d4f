package generated

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Entity struct {
	ID            string             `json:"id"`
	Code          pgtype.Text        `json:"code"`
	Kind          string             `json:"kind"`
	AllowNegative bool               `json:"allow_negative"`
	CachedBalance pgtype.Numeric     `json:"cached_balance"`
	Version       int64              `json:"version"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
	UpdatedAt     pgtype.Timestamptz `json:"updated_at"`
}

type OutboxEvent struct {
	ID            string             `json:"id"`
	AggregateID   string             `json:"aggregate_id"`
	AggregateType string             `json:"aggregate_type"`
	EventType     string             `json:"event_type"`
	Payload       []byte             `json:"payload"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
	PublishedAt   pgtype.Timestamptz `json:"published_at"`
	Published     bool               `json:"published"`
}

type Transaction struct {
	ID           string             `json:"id"`
	EntityID     string             `json:"entity_id"`
	Type         string             `json:"type"`
	Amount       pgtype.Numeric     `json:"amount"`
	Status       string             `json:"status"`
	RefNo        string             `json:"ref_no"`
	CorrectionOf pgtype.Text        `json:"correction_of"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
	FinalizedAt  pgtype.Timestamptz `json:"finalized_at"`
}
