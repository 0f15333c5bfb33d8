package model

import (
	"time"

	"github.com/google/uuid"
)

// Category groups products for display.
type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (Category) TableName() string { return "categories" }
