package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ContentUnit holds the ordered chunk list for one subtopic. Chunks are
// authored elsewhere and read-only to this service.
type ContentUnit struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SubtopicID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"subtopic_id"`
	Subtopic   *Subtopic      `gorm:"constraint:OnDelete:CASCADE;foreignKey:SubtopicID;references:ID" json:"subtopic,omitempty"`
	Chunks     datatypes.JSON `gorm:"type:jsonb;not null" json:"chunks"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ContentUnit) TableName() string { return "content_unit" }

type Diagram struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SubtopicID   uuid.UUID `gorm:"type:uuid;not null;index" json:"subtopic_id"`
	Subtopic     *Subtopic `gorm:"constraint:OnDelete:CASCADE;foreignKey:SubtopicID;references:ID" json:"subtopic,omitempty"`
	Description  string    `gorm:"type:text;not null" json:"description"`
	ImageContent []byte    `gorm:"type:bytea;not null" json:"-"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Diagram) TableName() string { return "diagram" }
