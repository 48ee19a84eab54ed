package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"roadwatch.mg/internal/auth"
	"roadwatch.mg/internal/obs"
	"roadwatch.mg/internal/roads"
)

const writeTimeout = 5 * time.Second

// Recorder appends user actions to the action log. Writes are fire-and-forget:
// a failed write is logged and counted, never returned to the caller.
type Recorder struct {
	store roads.ActionLog
	wg    sync.WaitGroup
}

func NewRecorder(store roads.ActionLog) *Recorder {
	return &Recorder{store: store}
}

// Record logs the event and persists it asynchronously.
func (r *Recorder) Record(ctx context.Context, action string, fields map[string]any) {
	if err := LogEvent(ctx, action, fields); err != nil {
		obs.Warn("audit_log_failed", map[string]any{"action": action, "error": err.Error()})
	}
	if r == nil || r.store == nil {
		return
	}
	entry := roads.UserAction{ActionType: action, Details: details(fields)}
	if uid, ok := auth.UserIDFromContext(ctx); ok {
		entry.UserID = &uid
	}
	rid := requestIDFromContext(ctx)
	bg := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		wctx, cancel := context.WithTimeout(bg, writeTimeout)
		defer cancel()
		if err := r.store.RecordAction(wctx, entry); err != nil {
			obs.AuditWriteFailed()
			obs.Error("audit_write_failed", map[string]any{
				"action":     action,
				"request_id": rid,
				"error":      err.Error(),
			})
		}
	}()
}

// Wait blocks until pending writes finish.
func (r *Recorder) Wait() {
	if r != nil {
		r.wg.Wait()
	}
}

func details(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(data)
}
