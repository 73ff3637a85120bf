package models

import "time"

// StoredGoal is a goal_records row. OwnerCipher is the encrypted owner id
// and OwnerIndex its blind index. Goal values are either stored in the
// plain columns or, when encrypted, as a single ValuesCipher blob.
type StoredGoal struct {
	ID          string
	OwnerIndex  []byte
	OwnerCipher []byte

	Steps        *int
	Calories     *int
	HeartPoints  *int
	ValuesCipher []byte

	CalculatedAt time.Time
	Source       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastSyncAt   *time.Time
	IsDirty      bool
	Revision     int64
}
