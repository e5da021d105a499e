package log

import (
	"sync/atomic"
)

type holder struct {
	logger Logger
}

// Slot holds the active logger. Views returned by Logger read the slot on every
// call, so code that captured a view keeps following later replacements.
type Slot struct {
	current atomic.Pointer[holder]
}

// NewSlot creates a slot holding l, or the console sink when l is nil.
func NewSlot(l Logger) *Slot {
	s := &Slot{}
	s.Set(l)
	return s
}

// Set replaces the active logger. A nil logger installs the console sink.
func (s *Slot) Set(l Logger) {
	if l == nil {
		l = Console()
	}
	s.current.Store(&holder{logger: l})
}

// Get returns the logger active right now.
func (s *Slot) Get() Logger {
	h := s.current.Load()
	if h == nil {
		return Console()
	}
	return h.logger
}

// Logger returns a view bound to the slot rather than to the current value.
func (s *Slot) Logger() Logger {
	return slotView{slot: s}
}

type slotView struct {
	slot *Slot
}

func (v slotView) Debug(params Params, msg string) { v.slot.Get().Debug(params, msg) }
func (v slotView) Info(params Params, msg string)  { v.slot.Get().Info(params, msg) }
func (v slotView) Warn(params Params, msg string)  { v.slot.Get().Warn(params, msg) }
func (v slotView) Error(params Params, err error, msg string) {
	v.slot.Get().Error(params, err, msg)
}

var defaultSlot = NewSlot(nil)

// SetDefault replaces the process-wide default logger.
func SetDefault(l Logger) {
	defaultSlot.Set(l)
}

// Default returns a view of the process-wide default logger.
func Default() Logger {
	return defaultSlot.Logger()
}

// DefaultSlot exposes the process-wide slot for callers that thread it
// explicitly.
func DefaultSlot() *Slot {
	return defaultSlot
}
