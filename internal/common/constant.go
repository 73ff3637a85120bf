// Package common contains shared constants and sentinel errors used across
// goalkeeper components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Goal value bounds shared by client-side validation and the goal store
// server.
const (
	MaxSteps       = 100_000
	MaxCalories    = 20_000
	MaxHeartPoints = 1_000
)
