// Package session keeps the per-owner access tokens the client pushes
// with. Tokens are issued by the goal store server and pasted in with the
// login command; the client never verifies signatures, it only checks
// owner and expiry before spending a network round trip.
package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/auth"
	"github.com/dmitrijs2005/goalkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/goalkeeper/internal/clock"
	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/dmitrijs2005/goalkeeper/internal/logging"
)

const keyPrefix = "session."

// Session describes one stored token.
type Session struct {
	OwnerID   string
	ExpiresAt time.Time
	Expired   bool
}

type Manager struct {
	meta  metadata.Repository
	clock clock.Clock
	log   logging.Logger
}

func NewManager(meta metadata.Repository, clk clock.Clock, log logging.Logger) *Manager {
	return &Manager{meta: meta, clock: clk, log: log.With("module", "session")}
}

func (m *Manager) expired(c *auth.Claims) bool {
	return c.ExpiresAt != nil && !m.clock.Now().Before(c.ExpiresAt.Time)
}

// Login stores token for ownerID after checking that it was issued for
// that owner and has not expired.
func (m *Manager) Login(ctx context.Context, ownerID, token string) error {
	claims, err := auth.PeekClaims(token)
	if err != nil {
		return err
	}
	if claims.OwnerID != ownerID {
		return fmt.Errorf("%w: token was issued for another owner", common.ErrInvalidToken)
	}
	if m.expired(claims) {
		return common.ErrTokenExpired
	}

	if err := m.meta.Set(ctx, keyPrefix+ownerID, []byte(token)); err != nil {
		return fmt.Errorf("%w: %w", common.ErrLocalPersistence, err)
	}
	m.log.Info(ctx, "session stored", "owner", ownerID)
	return nil
}

func (m *Manager) Logout(ctx context.Context, ownerID string) error {
	if err := m.meta.Delete(ctx, keyPrefix+ownerID); err != nil {
		return fmt.Errorf("%w: %w", common.ErrLocalPersistence, err)
	}
	return nil
}

// Authorize returns the token to push ownerID's records with. Missing and
// expired sessions yield common.ErrUnauthorized.
func (m *Manager) Authorize(ctx context.Context, ownerID string) (string, error) {
	raw, err := m.meta.Get(ctx, keyPrefix+ownerID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrLocalPersistence, err)
	}
	if raw == nil {
		return "", fmt.Errorf("%w: no session for %s", common.ErrUnauthorized, ownerID)
	}

	token := string(raw)
	claims, err := auth.PeekClaims(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthorized, err)
	}
	if m.expired(claims) {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthorized, common.ErrTokenExpired)
	}
	return token, nil
}

// List returns every stored session ordered by owner.
func (m *Manager) List(ctx context.Context) ([]Session, error) {
	all, err := m.meta.ListPrefix(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrLocalPersistence, err)
	}

	sessions := make([]Session, 0, len(all))
	for key, raw := range all {
		s := Session{OwnerID: strings.TrimPrefix(key, keyPrefix)}
		if claims, err := auth.PeekClaims(string(raw)); err == nil {
			if claims.ExpiresAt != nil {
				s.ExpiresAt = claims.ExpiresAt.Time
			}
			s.Expired = m.expired(claims)
		} else {
			s.Expired = true
		}
		sessions = append(sessions, s)
	}
	slices.SortFunc(sessions, func(a, b Session) int { return strings.Compare(a.OwnerID, b.OwnerID) })
	return sessions, nil
}
