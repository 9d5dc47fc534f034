package engine

import (
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// HookFunc handles one observer callback. The event is nil for hooks the
// engine invokes without an event payload.
type HookFunc func(ev *Event)

// Event is an opaque reference to an engine event object. Its accessors go
// through the version adapter; the underlying object is only valid while
// the session that produced it is alive.
type Event struct {
	rt  *Runtime
	obj *goja.Object
}

// Text invokes a zero-argument getter and returns its result as text.
// Returns "" when the getter is missing or yields nothing.
func (e *Event) Text(getter string) string {
	if e == nil {
		return ""
	}
	s, err := e.rt.api.eventText(e.obj, getter)
	if err != nil {
		return ""
	}
	return s
}

// Value invokes a zero-argument getter and returns the raw engine value,
// still foreign until converted with Plain.
func (e *Event) Value(getter string) Value {
	if e == nil {
		return Value{}
	}
	v, err := e.rt.api.eventValue(e.obj, getter)
	if err != nil {
		return Value{}
	}
	return Value{rt: e.rt, v: v}
}

// TaskWorkDir resolves the work directory of the task behind a task event.
func (e *Event) TaskWorkDir() (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil event")
	}
	return e.rt.api.taskWorkDir(e.obj)
}

// RegisterObserver builds an engine-side observer from the given hooks and
// splices it into the session's internal observer list. The engine requires
// an implementation for every hook it declares; a missing hook is a
// registration failure, not a silent skip.
//
// There is no public registration API in the engine: this mutates the
// session's observersV2 field directly. Versioned contract; revisit
// whenever the engine's internal layout changes.
func (s *Session) RegisterObserver(hooks map[string]HookFunc) error {
	required := s.rt.ObserverHooks()
	for _, name := range required {
		if _, ok := hooks[name]; !ok {
			return fmt.Errorf("observer does not implement required hook %s", name)
		}
	}

	observer := s.rt.vm.NewObject()
	for name, fn := range hooks {
		hookFn := fn
		err := observer.Set(name, func(call goja.FunctionCall) goja.Value {
			if hookFn != nil {
				var ev *Event
				if arg := call.Argument(0); arg != nil && !goja.IsUndefined(arg) && !goja.IsNull(arg) {
					ev = &Event{rt: s.rt, obj: arg.ToObject(s.rt.vm)}
				}
				hookFn(ev)
			}
			return goja.Undefined()
		})
		if err != nil {
			return fmt.Errorf("building observer hook %s: %w", name, err)
		}
	}

	observers, err := s.rt.api.sessionObservers(s.obj)
	if err != nil {
		return fmt.Errorf("registering observer: %w", err)
	}
	push, ok := goja.AssertFunction(observers.Get("push"))
	if !ok {
		return fmt.Errorf("registering observer: observer list is not a list")
	}
	if _, err := push(observers, observer); err != nil {
		return fmt.Errorf("registering observer: %w", err)
	}

	s.observer = observer
	return nil
}

// unregisterObserver removes the registered observer from the session's
// internal list. Best effort: if the list was never mutated or the layout
// is not what we expect, log and continue.
func (s *Session) unregisterObserver() {
	if s.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("observer removal panicked", zap.Any("panic", r))
		}
	}()

	observers, err := s.rt.api.sessionObservers(s.obj)
	if err != nil {
		s.logger.Debug("observer removal skipped", zap.Error(err))
		return
	}
	indexOf, ok := goja.AssertFunction(observers.Get("indexOf"))
	if !ok {
		return
	}
	idx, err := indexOf(observers, s.observer)
	if err != nil || idx.ToInteger() < 0 {
		return
	}
	splice, ok := goja.AssertFunction(observers.Get("splice"))
	if !ok {
		return
	}
	if _, err := splice(observers, idx, s.rt.vm.ToValue(1)); err != nil {
		s.logger.Debug("observer removal failed", zap.Error(err))
	}
	s.observer = nil
}
