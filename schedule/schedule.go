// Package schedule defines the schedule entity and its persistence
// contract. A schedule pairs a cron recurrence rule with an opaque job
// payload; the engine never inspects the payload.
package schedule

import (
	"time"

	"github.com/xraph/chrono"
	"github.com/xraph/chrono/id"
)

// Definition is a registered schedule. The recurrence rule is always a
// syntactically valid 5- or 6-field cron expression: invalid rules are
// rejected at creation and update time and never stored.
type Definition struct {
	chrono.Entity

	ID         id.ScheduleID `json:"id"`
	Name       string        `json:"name"`
	Expression string        `json:"expression"`
	Payload    []byte        `json:"payload,omitempty"`
	Enabled    bool          `json:"enabled"`
	LastRunAt  *time.Time    `json:"last_run_at,omitempty"`
	NextRunAt  *time.Time    `json:"next_run_at,omitempty"`
}

// Patch is a partial update to a schedule. Nil fields are left unchanged.
type Patch struct {
	Name       *string `json:"name,omitempty"`
	Expression *string `json:"expression,omitempty"`
	Payload    []byte  `json:"payload,omitempty"`
	Enabled    *bool   `json:"enabled,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Expression == nil && p.Payload == nil && p.Enabled == nil
}

// Reschedules reports whether applying the patch requires cancelling and
// re-arming the schedule's timer.
func (p Patch) Reschedules() bool {
	return p.Expression != nil || p.Enabled != nil
}

// Apply copies the patch's set fields onto the definition.
func (p Patch) Apply(d *Definition) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Expression != nil {
		d.Expression = *p.Expression
	}
	if p.Payload != nil {
		d.Payload = p.Payload
	}
	if p.Enabled != nil {
		d.Enabled = *p.Enabled
	}
}
