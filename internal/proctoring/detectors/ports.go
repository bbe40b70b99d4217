package detectors

import (
	"context"
	"time"

	"proctor/internal/proctoring/models"
)

// EventKind names a platform event the detectors listen for.
type EventKind string

const (
	EventVisibilityChange EventKind = "visibilitychange"
	EventBlur             EventKind = "blur"
	EventFocus            EventKind = "focus"
	EventClick            EventKind = "click"
	EventFullscreenChange EventKind = "fullscreenchange"
	EventCopy             EventKind = "copy"
	EventCut              EventKind = "cut"
	EventPaste            EventKind = "paste"
	EventContextMenu      EventKind = "contextmenu"
	EventKeyDown          EventKind = "keydown"
	EventKeyUp            EventKind = "keyup"
)

// TargetKind classifies the element an input event was aimed at.
type TargetKind int

const (
	TargetOther TargetKind = iota
	// TargetEditor is a rich-text or code-editing surface.
	TargetEditor
	// TargetTextInput is a plain text field or textarea.
	TargetTextInput
)

// Editing reports whether keystrokes on the target are answer input.
func (t TargetKind) Editing() bool {
	return t == TargetEditor || t == TargetTextInput
}

// Event is a dispatched platform event. Handlers share one *Event per dispatch.
type Event struct {
	Kind   EventKind
	Key    string
	Ctrl   bool
	Shift  bool
	Alt    bool
	Meta   bool
	Target TargetKind

	defaultPrevented   bool
	propagationStopped bool
}

func (e *Event) PreventDefault()  { e.defaultPrevented = true }
func (e *Event) StopPropagation() { e.propagationStopped = true }

func (e *Event) DefaultPrevented() bool   { return e.defaultPrevented }
func (e *Event) PropagationStopped() bool { return e.propagationStopped }

// ListenOptions mirrors the subset of listener options the detectors need.
type ListenOptions struct {
	// Capture registers the listener for the capture phase, ahead of target handlers.
	Capture bool
}

// Size is a window dimension in CSS pixels.
type Size struct {
	Width  int
	Height int
}

// Window is the platform surface the detectors observe. Event callbacks must be
// delivered on the monitor's scheduler goroutine.
type Window interface {
	AddListener(kind EventKind, fn func(*Event), opts ListenOptions) (remove func())
	Visible() bool
	Focused() bool
	Fullscreen() bool
	RequestFullscreen(ctx context.Context) error
	ExitFullscreen(ctx context.Context) error
	OuterSize() Size
	InnerSize() Size
}

// Recorder is the single shared violation entry point.
type Recorder interface {
	Record(violationType models.ViolationType, details string, cooldown time.Duration) bool
}

// Gate tells detectors whether they may raise violations right now.
type Gate interface {
	// Active is false while monitoring is disabled or a permission modal is open.
	Active() bool
	// Submitting is true once any submission, manual or automatic, has started.
	Submitting() bool
}
