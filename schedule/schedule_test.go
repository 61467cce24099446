package schedule_test

import (
	"testing"

	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/schedule"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestPatch_Empty(t *testing.T) {
	if !(schedule.Patch{}).Empty() {
		t.Error("zero patch not Empty")
	}
	if (schedule.Patch{Name: strPtr("x")}).Empty() {
		t.Error("patch with name reported Empty")
	}
	if (schedule.Patch{Payload: []byte("{}")}).Empty() {
		t.Error("patch with payload reported Empty")
	}
}

func TestPatch_Reschedules(t *testing.T) {
	cases := []struct {
		name  string
		patch schedule.Patch
		want  bool
	}{
		{"name only", schedule.Patch{Name: strPtr("x")}, false},
		{"payload only", schedule.Patch{Payload: []byte("{}")}, false},
		{"expression", schedule.Patch{Expression: strPtr("0 * * * *")}, true},
		{"enabled", schedule.Patch{Enabled: boolPtr(false)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.patch.Reschedules(); got != tc.want {
				t.Errorf("Reschedules() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPatch_Apply(t *testing.T) {
	def := &schedule.Definition{
		ID:         id.NewScheduleID(),
		Name:       "before",
		Expression: "* * * * *",
		Payload:    []byte("old"),
		Enabled:    true,
	}

	patch := schedule.Patch{
		Name:    strPtr("after"),
		Enabled: boolPtr(false),
	}
	patch.Apply(def)

	if def.Name != "after" {
		t.Errorf("Name = %q, want after", def.Name)
	}
	if def.Enabled {
		t.Error("Enabled still true")
	}
	// Unset fields are left alone.
	if def.Expression != "* * * * *" {
		t.Errorf("Expression = %q, unchanged field was modified", def.Expression)
	}
	if string(def.Payload) != "old" {
		t.Errorf("Payload = %q, unchanged field was modified", def.Payload)
	}
}
