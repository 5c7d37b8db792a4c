// Package events defines event types and structures for run lifecycle
// notifications.
package events

import (
	"time"
)

type EventType string

// Kafka topic carrying all lifecycle events.
const Topic = "datapilot.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunStartedEvent   EventType = "run.started"
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
	RunCancelledEvent EventType = "run.cancelled"

	// Step lifecycle events.
	StepProposedEvent EventType = "step.proposed"
	StepApprovedEvent EventType = "step.approved"
	StepAppliedEvent  EventType = "step.applied"
	StepFailedEvent   EventType = "step.failed"
	StepSkippedEvent  EventType = "step.skipped"

	// Snapshot and rollback events.
	SnapshotCapturedEvent  EventType = "snapshot.captured"
	RollbackRequestedEvent EventType = "rollback.requested"
	RollbackAppliedEvent   EventType = "rollback.applied"
	RollbackCancelledEvent EventType = "rollback.cancelled"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type RunStarted struct {
	BaseEvent

	Objective string `json:"objective"`
	SafeMode  bool   `json:"safe_mode"`
	Steps     int    `json:"steps"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunCompleted struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	StepID   string        `json:"step_id"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RunCancelled struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (e RunCancelled) GetType() EventType {
	return RunCancelledEvent
}

type StepProposed struct {
	BaseEvent

	StepID string `json:"step_id"`
	Tool   string `json:"tool"`
}

func (e StepProposed) GetType() EventType {
	return StepProposedEvent
}

type StepApproved struct {
	BaseEvent

	StepID     string `json:"step_id"`
	ApprovedBy string `json:"approved_by"`
}

func (e StepApproved) GetType() EventType {
	return StepApprovedEvent
}

type StepApplied struct {
	BaseEvent

	StepID string `json:"step_id"`
	Tool   string `json:"tool"`
}

func (e StepApplied) GetType() EventType {
	return StepAppliedEvent
}

type StepFailed struct {
	BaseEvent

	StepID string `json:"step_id"`
	Tool   string `json:"tool"`
	Error  string `json:"error"`
}

func (e StepFailed) GetType() EventType {
	return StepFailedEvent
}

type StepSkipped struct {
	BaseEvent

	StepID string `json:"step_id"`
	Reason string `json:"reason"`
}

func (e StepSkipped) GetType() EventType {
	return StepSkippedEvent
}

type SnapshotCaptured struct {
	BaseEvent

	SnapshotID string `json:"snapshot_id"`
	StepID     string `json:"step_id,omitempty"`
	TargetPath string `json:"target_path"`
	Checksum   string `json:"checksum"`
}

func (e SnapshotCaptured) GetType() EventType {
	return SnapshotCapturedEvent
}

type RollbackRequested struct {
	BaseEvent

	RollbackID string `json:"rollback_id"`
	SnapshotID string `json:"snapshot_id"`
}

func (e RollbackRequested) GetType() EventType {
	return RollbackRequestedEvent
}

type RollbackApplied struct {
	BaseEvent

	RollbackID    string `json:"rollback_id"`
	SnapshotID    string `json:"snapshot_id"`
	TargetPath    string `json:"target_path"`
	BytesRestored int64  `json:"bytes_restored"`
	Forced        bool   `json:"forced"`
}

func (e RollbackApplied) GetType() EventType {
	return RollbackAppliedEvent
}

type RollbackCancelled struct {
	BaseEvent

	RollbackID string `json:"rollback_id"`
}

func (e RollbackCancelled) GetType() EventType {
	return RollbackCancelledEvent
}
