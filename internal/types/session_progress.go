package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// QAPair is one (question, answer) entry in a session's chat memory.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SessionProgress is the per-(user, subtopic) pacing record. ChatMemory holds
// the most recent 30 QAPairs in arrival order. The cached_next_* columns form
// a single-slot speculative cache: the slot is only meaningful while
// cached_next_index == chunk_index + 1.
type SessionProgress struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID             uuid.UUID      `gorm:"type:uuid;not null;index:idx_session_user_subtopic,unique" json:"user_id"`
	SubtopicID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_session_user_subtopic,unique" json:"subtopic_id"`
	Subtopic           *Subtopic      `gorm:"constraint:OnDelete:CASCADE;foreignKey:SubtopicID;references:ID" json:"subtopic,omitempty"`
	ChunkIndex         int            `gorm:"not null;default:0" json:"chunk_index"`
	ChatMemory         datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"chat_memory"`
	CachedNextResponse *string        `gorm:"type:text" json:"cached_next_response,omitempty"`
	CachedNextImage    []byte         `gorm:"type:bytea" json:"-"`
	CachedNextIndex    *int           `json:"cached_next_index,omitempty"`
	LastUpdated        time.Time      `gorm:"not null;default:now()" json:"last_updated"`
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (SessionProgress) TableName() string { return "session_progress" }

// HasValidCache reports whether the speculative slot targets exactly one
// step ahead of the current cursor.
func (p *SessionProgress) HasValidCache() bool {
	if p == nil || p.CachedNextResponse == nil || p.CachedNextIndex == nil {
		return false
	}
	return *p.CachedNextIndex == p.ChunkIndex+1
}
