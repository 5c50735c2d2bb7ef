// Package audit records security-relevant account events.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Event kinds written to the audit trail.
const (
	KindRegister        = "register"
	KindLoginOK         = "login_ok"
	KindLoginFail       = "login_fail"
	KindPasswordChange  = "password_change"
	KindPasswordRecover = "password_recover"
)

// Event describes one security-relevant occurrence.
type Event struct {
	Kind   string    `json:"kind"`
	UserID string    `json:"user_id,omitempty"`
	Email  string    `json:"email,omitempty"`
	IP     string    `json:"ip,omitempty"`
	At     time.Time `json:"at"`
}

// Recorder accepts events for asynchronous persistence. Implementations must
// not block the request path; failures are the caller's to log and ignore.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// TaskTypeRecord is the asynq task type for persisting one audit event.
const TaskTypeRecord = "audit:record"

// TaskTypePrune is the asynq task type for trimming old audit events.
const TaskTypePrune = "audit:prune"

// NewRecordTask builds an asynq task carrying the event payload.
func NewRecordTask(event Event) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRecord, data), nil
}

// AsynqRecorder enqueues events onto the job queue.
type AsynqRecorder struct {
	client *asynq.Client
	queue  string
}

// NewAsynqRecorder constructs an AsynqRecorder.
func NewAsynqRecorder(client *asynq.Client, queue string) *AsynqRecorder {
	return &AsynqRecorder{client: client, queue: queue}
}

// Record enqueues the event for background persistence.
func (r *AsynqRecorder) Record(ctx context.Context, event Event) error {
	task, err := NewRecordTask(event)
	if err != nil {
		return err
	}
	_, err = r.client.EnqueueContext(ctx, task, asynq.Queue(r.queue))
	return err
}

// NopRecorder discards all events.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, Event) error { return nil }

var (
	_ Recorder = (*AsynqRecorder)(nil)
	_ Recorder = NopRecorder{}
)
