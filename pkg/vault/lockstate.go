package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Unlock attempt limits: 5 failures -> 30s, 10 -> 5min, 20 -> 30min.
const (
	AttemptsFileName = "vault.enc.attempts"

	CooldownThreshold1 = 5
	CooldownThreshold2 = 10
	CooldownThreshold3 = 20
	CooldownDuration1  = 30 * time.Second
	CooldownDuration2  = 5 * time.Minute
	CooldownDuration3  = 30 * time.Minute
)

// LockState tracks failed unlock attempts for cooldown enforcement.
type LockState struct {
	FailedAttempts int       `json:"failed_attempts"`
	LastAttempt    time.Time `json:"last_attempt"`
	CooldownUntil  time.Time `json:"cooldown_until"`
}

func (s *Store) lockStatePath() string {
	return filepath.Join(s.Dir(), AttemptsFileName)
}

// GetLockState returns the current failed-attempt state.
func (s *Store) GetLockState() (*LockState, error) {
	data, err := os.ReadFile(s.lockStatePath())
	if err != nil {
		if os.IsNotExist(err) {
			return &LockState{}, nil
		}
		return nil, ioError("read unlock attempt state", err)
	}

	var state LockState
	if err := json.Unmarshal(data, &state); err != nil {
		// a corrupted state file resets the counter
		return &LockState{}, nil
	}
	return &state, nil
}

func (s *Store) saveLockState(state *LockState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: unlock attempt state: %w", ErrSerialization, err)
	}
	if err := os.WriteFile(s.lockStatePath(), data, FileMode); err != nil {
		return ioError("write unlock attempt state", err)
	}
	return nil
}

func (s *Store) clearLockState() error {
	err := os.Remove(s.lockStatePath())
	if err != nil && !os.IsNotExist(err) {
		return ioError("clear unlock attempt state", err)
	}
	return nil
}

// checkCooldown returns ErrCooldownActive and the remaining time while a
// cooldown is in effect.
func (s *Store) checkCooldown() (time.Duration, error) {
	state, err := s.GetLockState()
	if err != nil {
		return 0, err
	}
	if remaining := time.Until(state.CooldownUntil); !state.CooldownUntil.IsZero() && remaining > 0 {
		return remaining, ErrCooldownActive
	}
	return 0, nil
}

// RemainingCooldown returns the remaining cooldown, or 0.
func (s *Store) RemainingCooldown() time.Duration {
	remaining, err := s.checkCooldown()
	if err != nil {
		return remaining
	}
	return 0
}

// recordFailedAttempt counts a failure and returns the cooldown it triggered.
func (s *Store) recordFailedAttempt() (time.Duration, error) {
	state, err := s.GetLockState()
	if err != nil {
		return 0, err
	}

	state.FailedAttempts++
	state.LastAttempt = time.Now()

	var cooldown time.Duration
	switch {
	case state.FailedAttempts >= CooldownThreshold3:
		cooldown = CooldownDuration3
	case state.FailedAttempts >= CooldownThreshold2:
		cooldown = CooldownDuration2
	case state.FailedAttempts >= CooldownThreshold1:
		cooldown = CooldownDuration1
	}
	if cooldown > 0 {
		state.CooldownUntil = state.LastAttempt.Add(cooldown)
	}

	return cooldown, s.saveLockState(state)
}
