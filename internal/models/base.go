package models

import (
	"time"
)

// BaseModel defines the common fields for all models.
// The ID is an opaque string assigned by the storage layer on creation.
type BaseModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
