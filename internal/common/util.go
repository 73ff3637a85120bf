package common

import (
	"crypto/rand"
	"fmt"
)

// GenerateRandByteArray returns size bytes from crypto/rand. It panics if
// the system random source fails, which leaves nothing sensible to do.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return b
}

// WipeByteArray zeroes b in place. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ValidateGoalValues checks goal targets against the accepted ranges.
func ValidateGoalValues(steps, calories, heartPoints int) error {
	if steps <= 0 || steps > MaxSteps {
		return fmt.Errorf("%w: steps %d out of range (1..%d)", ErrValidation, steps, MaxSteps)
	}
	if calories <= 0 || calories > MaxCalories {
		return fmt.Errorf("%w: calories %d out of range (1..%d)", ErrValidation, calories, MaxCalories)
	}
	if heartPoints <= 0 || heartPoints > MaxHeartPoints {
		return fmt.Errorf("%w: heart points %d out of range (1..%d)", ErrValidation, heartPoints, MaxHeartPoints)
	}
	return nil
}
