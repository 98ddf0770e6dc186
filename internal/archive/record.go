package archive

import (
	"time"

	"github.com/ethanbaker/avatar-client/pkg/evaluation"
	"github.com/ethanbaker/avatar-client/pkg/transcript"
	"github.com/google/uuid"
)

// Record is a finished session: its transcript and the evaluation outcome shown to the user
type Record struct {
	ID               uuid.UUID          `json:"id" gorm:"type:char(36);primaryKey"`
	Room             string             `json:"room" gorm:"size:255;index"`
	Participant      string             `json:"participant" gorm:"size:255"`
	DisconnectReason string             `json:"disconnect_reason,omitempty" gorm:"size:255"`
	Transcript       []transcript.Entry `json:"transcript" gorm:"serializer:json;type:mediumtext"`
	Outcome          evaluation.Outcome `json:"outcome" gorm:"serializer:json;type:mediumtext"`
	StartedAt        time.Time          `json:"started_at"`
	EndedAt          time.Time          `json:"ended_at"`
	CreatedAt        time.Time          `json:"created_at" gorm:"index"`
}

// TableName keeps the table name stable across renames of the struct
func (Record) TableName() string {
	return "session_records"
}

// Summary is the list view of a record
type Summary struct {
	ID          uuid.UUID              `json:"id"`
	Room        string                 `json:"room"`
	Participant string                 `json:"participant"`
	Kind        evaluation.OutcomeKind `json:"kind"`
	Messages    int                    `json:"messages"`
	EndedAt     time.Time              `json:"ended_at"`
}

// NewRecord creates a record with a generated id
func NewRecord(room, participant string) *Record {
	return &Record{
		ID:          uuid.New(),
		Room:        room,
		Participant: participant,
	}
}

// Summarize returns the list view of the record
func (r *Record) Summarize() Summary {
	return Summary{
		ID:          r.ID,
		Room:        r.Room,
		Participant: r.Participant,
		Kind:        r.Outcome.Kind,
		Messages:    len(r.Transcript),
		EndedAt:     r.EndedAt,
	}
}
