package integration

import (
	"time"

	"github.com/google/uuid"
)

// DefaultIDField is the donor identifier external sources key their data by.
const DefaultIDField = "RRID"

// Source is a registered external data portal that serves per-donor
// variables.
type Source struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name" validate:"required,max=128"`
	APIURL      string    `json:"api_url" validate:"required,http_url"`
	Description string    `json:"description"`
	IDField     string    `json:"id_field"`
	Variables   []string  `json:"available_variables" validate:"omitempty,dive,required"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Source) normalize() {
	if s.IDField == "" {
		s.IDField = DefaultIDField
	}
	if s.Variables == nil {
		s.Variables = []string{}
	}
}
