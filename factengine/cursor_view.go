package factengine

import (
	"github.com/factline/factrt/fact"
	"github.com/factline/factrt/factproj"
)

// cursorView adapts a SnapshotProjection or Aggregate instance, which
// tracks no cursor of its own, onto factproj.ManagedProjection so
// factsub.Driver can catch it up the same way it catches up a genuine
// ManagedProjection. Its ExecuteUpdate is a no-op lock: fetch/find callers
// never share the instance across goroutines, so there is nothing to
// serialize against.
type cursorView struct {
	declared factproj.Declared
	cursor   fact.ID
}

func (v *cursorView) ClassID() string             { return v.declared.ClassID() }
func (v *cursorView) Handlers() []factproj.Handler { return v.declared.Handlers() }
func (v *cursorView) Cursor() fact.ID              { return v.cursor }
func (v *cursorView) Advance(id fact.ID)           { v.cursor = id }
func (v *cursorView) ExecuteUpdate(fn func() error) error {
	return fn()
}
