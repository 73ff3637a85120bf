// Package models defines the client-side goal record and the results the
// sync pipeline reports about it.
package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/common"
)

// CalculationSource tags how a goal set was produced.
type CalculationSource string

const (
	SourceDefault      CalculationSource = "default"
	SourcePersonalized CalculationSource = "personalized"
	SourceManual       CalculationSource = "manual"
	SourceFallback     CalculationSource = "fallback"
)

func (s CalculationSource) Valid() bool {
	switch s {
	case SourceDefault, SourcePersonalized, SourceManual, SourceFallback:
		return true
	}
	return false
}

// GoalValues are the daily targets of one goal set.
type GoalValues struct {
	Steps       int `json:"steps"`
	Calories    int `json:"calories"`
	HeartPoints int `json:"heart_points"`
}

// GoalRecord is the unit of synchronization. OwnerID is kept in plaintext
// in memory only; the store encrypts it at rest.
type GoalRecord struct {
	ID           string
	OwnerID      string
	Values       GoalValues
	CalculatedAt time.Time
	Source       CalculationSource

	CreatedAt time.Time
	UpdatedAt time.Time
	// LastSyncAt is nil until the remote has acknowledged the record.
	LastSyncAt *time.Time
	IsDirty    bool
	// Revision is assigned by the store and grows on every content change.
	Revision int64
}

// Validate checks the caller-supplied fields. Bookkeeping fields are owned
// by the store and are not checked.
func (r GoalRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", common.ErrValidation)
	}
	if r.OwnerID == "" {
		return fmt.Errorf("%w: missing owner", common.ErrValidation)
	}
	if r.CalculatedAt.IsZero() {
		return fmt.Errorf("%w: missing calculation time", common.ErrValidation)
	}
	if !r.Source.Valid() {
		return fmt.Errorf("%w: unknown calculation source %q", common.ErrValidation, r.Source)
	}
	return common.ValidateGoalValues(r.Values.Steps, r.Values.Calories, r.Values.HeartPoints)
}

// SameContent reports whether two records carry the same goal data. Sync
// bookkeeping is ignored.
func (r GoalRecord) SameContent(o GoalRecord) bool {
	return r.ID == o.ID &&
		r.OwnerID == o.OwnerID &&
		r.Values == o.Values &&
		r.CalculatedAt.Equal(o.CalculatedAt) &&
		r.Source == o.Source
}
