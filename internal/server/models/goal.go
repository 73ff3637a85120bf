package models

import (
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/wire"
)

// Goal is the authoritative server copy of a goal record.
type Goal struct {
	ID           string    `db:"id"`
	OwnerID      string    `db:"owner_id"`
	Steps        int       `db:"steps"`
	Calories     int       `db:"calories"`
	HeartPoints  int       `db:"heart_points"`
	CalculatedAt time.Time `db:"calculated_at"`
	Source       string    `db:"source"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func GoalFromDocument(d wire.Document) *Goal {
	return &Goal{
		ID:           d.ID,
		OwnerID:      d.OwnerID,
		Steps:        d.Steps,
		Calories:     d.Calories,
		HeartPoints:  d.HeartPoints,
		CalculatedAt: d.CalculatedAt.UTC(),
		Source:       d.Source,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}
