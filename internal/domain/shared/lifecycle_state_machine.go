package shared

import (
	"fmt"
	"time"
)

// LifecycleStatus represents the state of an entity in its lifecycle
type LifecycleStatus string

const (
	// LifecycleStatusPending indicates the entity is queued but not started
	LifecycleStatusPending LifecycleStatus = "PENDING"

	// LifecycleStatusRunning indicates the entity is actively executing
	LifecycleStatusRunning LifecycleStatus = "RUNNING"

	// LifecycleStatusCompleted indicates the entity finished successfully
	LifecycleStatusCompleted LifecycleStatus = "COMPLETED"

	// LifecycleStatusFailed indicates the entity encountered an error
	LifecycleStatusFailed LifecycleStatus = "FAILED"

	// LifecycleStatusCancelled indicates the entity honored a cancellation request
	LifecycleStatusCancelled LifecycleStatus = "CANCELLED"
)

// LifecycleStateMachine manages the common lifecycle state transitions for
// entities that follow the PENDING → RUNNING → terminal pattern, where
// terminal is one of COMPLETED, FAILED or CANCELLED. Timeouts and restart
// interruptions surface as FAILED with a reason-tagged error.
//
// This component uses composition to provide reusable state management
// behavior for the task entity.
//
// Invariants:
// - State transitions must follow valid paths
// - Terminal states accept no further transitions
// - Timestamps are automatically managed
// - Clock is injected for testability
type LifecycleStateMachine struct {
	status     LifecycleStatus
	createdAt  time.Time
	updatedAt  time.Time
	startedAt  *time.Time
	finishedAt *time.Time
	lastError  error
	clock      Clock
}

// NewLifecycleStateMachine creates a new lifecycle state machine in PENDING state
func NewLifecycleStateMachine(clock Clock) *LifecycleStateMachine {
	if clock == nil {
		clock = NewRealClock()
	}

	now := clock.Now()
	return &LifecycleStateMachine{
		status:    LifecycleStatusPending,
		createdAt: now,
		updatedAt: now,
		clock:     clock,
	}
}

// Getters

// Status returns the current lifecycle status
func (sm *LifecycleStateMachine) Status() LifecycleStatus {
	return sm.status
}

// CreatedAt returns when the entity was created
func (sm *LifecycleStateMachine) CreatedAt() time.Time {
	return sm.createdAt
}

// UpdatedAt returns when the entity was last updated
func (sm *LifecycleStateMachine) UpdatedAt() time.Time {
	return sm.updatedAt
}

// StartedAt returns when the entity started execution (nil if not started)
func (sm *LifecycleStateMachine) StartedAt() *time.Time {
	return sm.startedAt
}

// FinishedAt returns when the entity reached a terminal state (nil if still live)
func (sm *LifecycleStateMachine) FinishedAt() *time.Time {
	return sm.finishedAt
}

// LastError returns the last error encountered (nil if no error)
func (sm *LifecycleStateMachine) LastError() error {
	return sm.lastError
}

// State transition methods

// Start transitions from PENDING to RUNNING state
func (sm *LifecycleStateMachine) Start() error {
	if sm.status != LifecycleStatusPending {
		return fmt.Errorf("cannot start from %s state", sm.status)
	}

	now := sm.clock.Now()
	sm.status = LifecycleStatusRunning
	sm.startedAt = &now
	sm.updatedAt = now
	return nil
}

// Complete transitions from RUNNING to COMPLETED state
func (sm *LifecycleStateMachine) Complete() error {
	if sm.status != LifecycleStatusRunning {
		return fmt.Errorf("cannot complete from %s state", sm.status)
	}

	now := sm.clock.Now()
	sm.status = LifecycleStatusCompleted
	sm.finishedAt = &now
	sm.updatedAt = now
	return nil
}

// Fail transitions to FAILED state with an error.
// Allowed from PENDING and RUNNING.
func (sm *LifecycleStateMachine) Fail(err error) error {
	if sm.IsFinished() {
		return fmt.Errorf("cannot fail from %s state", sm.status)
	}

	now := sm.clock.Now()
	sm.status = LifecycleStatusFailed
	sm.lastError = err
	sm.finishedAt = &now
	sm.updatedAt = now
	return nil
}

// Cancel transitions to CANCELLED state.
// Allowed from PENDING and RUNNING.
func (sm *LifecycleStateMachine) Cancel() error {
	if sm.IsFinished() {
		return fmt.Errorf("cannot cancel from %s state", sm.status)
	}

	now := sm.clock.Now()
	sm.status = LifecycleStatusCancelled
	sm.finishedAt = &now
	sm.updatedAt = now
	return nil
}

// State query methods

// IsRunning returns true if the entity is currently executing
func (sm *LifecycleStateMachine) IsRunning() bool {
	return sm.status == LifecycleStatusRunning
}

// IsFinished returns true if the entity reached a terminal state
func (sm *LifecycleStateMachine) IsFinished() bool {
	switch sm.status {
	case LifecycleStatusCompleted, LifecycleStatusFailed, LifecycleStatusCancelled:
		return true
	}
	return false
}

// IsPending returns true if the entity hasn't started yet
func (sm *LifecycleStateMachine) IsPending() bool {
	return sm.status == LifecycleStatusPending
}

// Runtime calculation

// RuntimeDuration calculates how long the entity has been/was running.
// Returns 0 if not started yet.
func (sm *LifecycleStateMachine) RuntimeDuration() time.Duration {
	if sm.startedAt == nil {
		return 0
	}

	endTime := sm.clock.Now()
	if sm.finishedAt != nil {
		endTime = *sm.finishedAt
	}

	return endTime.Sub(*sm.startedAt)
}

// Internal state management for advanced use cases

// UpdateTimestamp updates the updatedAt timestamp.
// Useful when entity performs operations that don't change lifecycle state.
func (sm *LifecycleStateMachine) UpdateTimestamp() {
	sm.updatedAt = sm.clock.Now()
}

// RecoverFromPersistence restores the complete lifecycle state from persisted
// data. This should only be used when reconstructing entities from storage.
func (sm *LifecycleStateMachine) RecoverFromPersistence(
	status LifecycleStatus,
	createdAt, updatedAt time.Time,
	startedAt, finishedAt *time.Time,
	lastError error,
) {
	sm.status = status
	sm.createdAt = createdAt
	sm.updatedAt = updatedAt
	sm.startedAt = startedAt
	sm.finishedAt = finishedAt
	sm.lastError = lastError
}
