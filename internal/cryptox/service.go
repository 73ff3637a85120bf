package cryptox

import (
	"context"
	"crypto/cipher"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/client/keystore"
	"github.com/dmitrijs2005/goalkeeper/internal/clock"
	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/dmitrijs2005/goalkeeper/internal/logging"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	formatV1 byte = 1

	keySize    = chacha20poly1305.KeySize
	nonceSize  = chacha20poly1305.NonceSizeX
	headerSize = 1 + nonceSize

	metaActiveVersion = "crypto.active_version"
	metaRotatedAt     = "crypto.rotated_at"

	DefaultMaxKeyAge = 30 * 24 * time.Hour
	DefaultGraceKeys = 2
)

// StateStore persists the key counter and rotation time. Get returns
// (nil, nil) for a missing key, which is how the metadata repository
// behaves.
type StateStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

type Options struct {
	MaxKeyAge time.Duration
	// GraceKeys is the number of prior keys kept for decryption after a
	// rotation. Values below 1 are raised to 1 so records written under the
	// previous key can still be re-wrapped.
	GraceKeys int
}

// KeyRotationResult describes one RotateKey call.
type KeyRotationResult struct {
	PreviousVersion int
	ActiveVersion   int
	RotatedAt       time.Time
	Retired         []int
}

type Service struct {
	keys  keystore.Keystore
	state StateStore
	clock clock.Clock
	log   logging.Logger
	opts  Options

	mu        sync.RWMutex
	active    int
	rotatedAt time.Time
	aeads     map[int]cipher.AEAD
}

func keyAlias(version int) string {
	return fmt.Sprintf("goal-key-v%d", version)
}

// NewService loads the active key and the retained prior keys, creating
// version 1 on first use.
func NewService(ctx context.Context, keys keystore.Keystore, state StateStore, clk clock.Clock, log logging.Logger, opts Options) (*Service, error) {
	if opts.MaxKeyAge <= 0 {
		opts.MaxKeyAge = DefaultMaxKeyAge
	}
	if opts.GraceKeys < 1 {
		opts.GraceKeys = 1
	}

	s := &Service{
		keys:  keys,
		state: state,
		clock: clk,
		log:   log.With("module", "cryptox"),
		opts:  opts,
		aeads: make(map[int]cipher.AEAD),
	}

	raw, err := state.Get(ctx, metaActiveVersion)
	if err != nil {
		return nil, fmt.Errorf("read key version: %w", err)
	}
	if raw == nil {
		if err := s.bootstrap(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}

	active, err := strconv.Atoi(string(raw))
	if err != nil || active < 1 {
		return nil, fmt.Errorf("%w: corrupt key version %q", common.ErrKeyNotFound, raw)
	}
	s.active = active

	if raw, err = state.Get(ctx, metaRotatedAt); err != nil {
		return nil, fmt.Errorf("read rotation time: %w", err)
	}
	if raw != nil {
		ns, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt rotation time %q: %w", raw, err)
		}
		s.rotatedAt = time.Unix(0, ns).UTC()
	}

	if err := s.load(ctx, active); err != nil {
		return nil, fmt.Errorf("active key v%d: %w", active, err)
	}
	for v := active - 1; v >= 1 && v >= active-opts.GraceKeys; v-- {
		if err := s.load(ctx, v); err != nil {
			if errors.Is(err, common.ErrKeyNotFound) {
				break
			}
			return nil, fmt.Errorf("retained key v%d: %w", v, err)
		}
	}

	return s, nil
}

func (s *Service) bootstrap(ctx context.Context) error {
	now := s.clock.Now()
	if err := s.create(ctx, 1); err != nil {
		return err
	}
	if err := s.persistState(ctx, 1, now); err != nil {
		return err
	}
	s.active = 1
	s.rotatedAt = now
	s.log.Info(ctx, "created initial encryption key", "version", 1)
	return nil
}

func (s *Service) load(ctx context.Context, version int) error {
	key, err := s.keys.Get(ctx, keyAlias(version))
	if err != nil {
		return err
	}
	defer common.WipeByteArray(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrKeyNotFound, err)
	}
	s.aeads[version] = aead
	return nil
}

func (s *Service) create(ctx context.Context, version int) error {
	key := common.GenerateRandByteArray(keySize)
	defer common.WipeByteArray(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}
	if err := s.keys.Put(ctx, keyAlias(version), key); err != nil {
		return fmt.Errorf("store key v%d: %w", version, err)
	}
	s.aeads[version] = aead
	return nil
}

func (s *Service) persistState(ctx context.Context, version int, at time.Time) error {
	if err := s.state.Set(ctx, metaActiveVersion, []byte(strconv.Itoa(version))); err != nil {
		return fmt.Errorf("persist key version: %w", err)
	}
	if err := s.state.Set(ctx, metaRotatedAt, []byte(strconv.FormatInt(at.UnixNano(), 10))); err != nil {
		return fmt.Errorf("persist rotation time: %w", err)
	}
	return nil
}

// ActiveVersion returns the version new blobs are sealed with.
func (s *Service) ActiveVersion() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Encrypt seals plaintext under the active key.
func (s *Service) Encrypt(plaintext []byte) ([]byte, error) {
	s.mu.RLock()
	aead, ok := s.aeads[s.active]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: active key not loaded", common.ErrEncryption)
	}

	out := make([]byte, headerSize, headerSize+len(plaintext)+aead.Overhead())
	out[0] = formatV1
	nonce := common.GenerateRandByteArray(nonceSize)
	copy(out[1:headerSize], nonce)

	return aead.Seal(out, nonce, plaintext, out[:1]), nil
}

// Decrypt opens a blob produced by Encrypt under the active key or any
// retained key.
func (s *Service) Decrypt(blob []byte) ([]byte, error) {
	plaintext, _, err := s.Open(blob)
	return plaintext, err
}

// Open is Decrypt that also reports which key version opened the blob.
func (s *Service) Open(blob []byte) ([]byte, int, error) {
	if len(blob) < headerSize+chacha20poly1305.Overhead {
		return nil, 0, fmt.Errorf("%w: blob too short", common.ErrDecryption)
	}
	if blob[0] != formatV1 {
		return nil, 0, fmt.Errorf("%w: unknown format %d", common.ErrDecryption, blob[0])
	}
	nonce := blob[1:headerSize]
	sealed := blob[headerSize:]
	ad := blob[:1]

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.versionsLocked() {
		plaintext, err := s.aeads[v].Open(nil, nonce, sealed, ad)
		if err == nil {
			return plaintext, v, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: no retained key opens blob", common.ErrDecryption)
}

// versionsLocked lists loaded versions, active first then newest to oldest.
func (s *Service) versionsLocked() []int {
	versions := make([]int, 0, len(s.aeads))
	for v := range s.aeads {
		versions = append(versions, v)
	}
	slices.SortFunc(versions, func(a, b int) int {
		switch {
		case a == s.active:
			return -1
		case b == s.active:
			return 1
		default:
			return b - a
		}
	})
	return versions
}

// IsRotationDue reports whether the active key is older than MaxKeyAge.
func (s *Service) IsRotationDue() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock.Now().Sub(s.rotatedAt) > s.opts.MaxKeyAge
}

// RotateKey makes a fresh key active. Blobs sealed under the previous
// GraceKeys versions stay readable; older versions are deleted.
func (s *Service) RotateKey(ctx context.Context) (KeyRotationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.active
	next := prev + 1
	now := s.clock.Now()

	if err := s.create(ctx, next); err != nil {
		return KeyRotationResult{}, err
	}
	if err := s.persistState(ctx, next, now); err != nil {
		delete(s.aeads, next)
		return KeyRotationResult{}, err
	}
	s.active = next
	s.rotatedAt = now

	res := KeyRotationResult{PreviousVersion: prev, ActiveVersion: next, RotatedAt: now}
	for v := range s.aeads {
		if v >= next-s.opts.GraceKeys {
			continue
		}
		if err := s.keys.Delete(ctx, keyAlias(v)); err != nil {
			s.log.Warn(ctx, "failed to delete retired key", "version", v, "error", err)
			continue
		}
		delete(s.aeads, v)
		res.Retired = append(res.Retired, v)
	}
	slices.Sort(res.Retired)

	s.log.Info(ctx, "encryption key rotated", "previous", prev, "active", next, "retired", res.Retired)
	return res, nil
}
