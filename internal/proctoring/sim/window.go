// Package sim provides a scripted in-memory platform for the monitor: a
// window, capture devices, geolocation, a face detector and a session host.
// cmd/proctorsim replays YAML scenarios against it on a manual clock.
package sim

import (
	"context"
	"errors"

	"proctor/internal/proctoring/detectors"
)

var ErrFullscreenRefused = errors.New("fullscreen request requires a user gesture")

type listener struct {
	fn      func(*detectors.Event)
	capture bool
	removed bool
}

// Window is a scriptable detectors.Window. All methods must be called from the
// scheduler goroutine.
type Window struct {
	listeners map[detectors.EventKind][]*listener

	visible    bool
	focused    bool
	fullscreen bool
	outer      detectors.Size
	inner      detectors.Size

	// RefuseFullscreen makes RequestFullscreen fail, as browsers do without a gesture.
	RefuseFullscreen bool
	FullscreenCalls  int
	ExitCalls        int
}

func NewWindow() *Window {
	return &Window{
		listeners: map[detectors.EventKind][]*listener{},
		visible:   true,
		focused:   true,
		outer:     detectors.Size{Width: 1440, Height: 900},
		inner:     detectors.Size{Width: 1440, Height: 900},
	}
}

func (w *Window) AddListener(kind detectors.EventKind, fn func(*detectors.Event), opts detectors.ListenOptions) func() {
	l := &listener{fn: fn, capture: opts.Capture}
	w.listeners[kind] = append(w.listeners[kind], l)
	return func() { l.removed = true }
}

// Listeners counts installed listeners across every event kind.
func (w *Window) Listeners() int {
	n := 0
	for _, ls := range w.listeners {
		for _, l := range ls {
			if !l.removed {
				n++
			}
		}
	}
	return n
}

// Dispatch delivers e to capture listeners first, then the rest.
func (w *Window) Dispatch(e *detectors.Event) *detectors.Event {
	for _, capture := range []bool{true, false} {
		for _, l := range w.listeners[e.Kind] {
			if l.removed || l.capture != capture {
				continue
			}
			l.fn(e)
			if e.PropagationStopped() {
				return e
			}
		}
	}
	return e
}

func (w *Window) Visible() bool              { return w.visible }
func (w *Window) Focused() bool              { return w.focused }
func (w *Window) Fullscreen() bool           { return w.fullscreen }
func (w *Window) OuterSize() detectors.Size  { return w.outer }
func (w *Window) InnerSize() detectors.Size  { return w.inner }

func (w *Window) RequestFullscreen(context.Context) error {
	w.FullscreenCalls++
	if w.RefuseFullscreen {
		return ErrFullscreenRefused
	}
	w.setFullscreen(true)
	return nil
}

func (w *Window) ExitFullscreen(context.Context) error {
	w.ExitCalls++
	w.setFullscreen(false)
	return nil
}

func (w *Window) setFullscreen(on bool) {
	if w.fullscreen == on {
		return
	}
	w.fullscreen = on
	w.Dispatch(&detectors.Event{Kind: detectors.EventFullscreenChange})
}

// Script actions.

// HideTab switches to another tab: the page becomes hidden and loses focus.
func (w *Window) HideTab() {
	w.visible = false
	w.Dispatch(&detectors.Event{Kind: detectors.EventVisibilityChange})
	w.focused = false
	w.Dispatch(&detectors.Event{Kind: detectors.EventBlur})
}

// ShowTab returns to the exam tab.
func (w *Window) ShowTab() {
	w.visible = true
	w.Dispatch(&detectors.Event{Kind: detectors.EventVisibilityChange})
	w.focused = true
	w.Dispatch(&detectors.Event{Kind: detectors.EventFocus})
}

// Blur moves focus to another window while the tab stays visible.
func (w *Window) Blur() {
	w.focused = false
	w.Dispatch(&detectors.Event{Kind: detectors.EventBlur})
}

func (w *Window) Focus() {
	w.focused = true
	w.Dispatch(&detectors.Event{Kind: detectors.EventFocus})
}

// LeaveFullscreen simulates the student leaving fullscreen through browser chrome.
func (w *Window) LeaveFullscreen() {
	w.setFullscreen(false)
}

// OpenDevTools docks a devtools panel of the given height.
func (w *Window) OpenDevTools(px int) {
	w.inner = detectors.Size{Width: w.outer.Width, Height: w.outer.Height - px}
}

func (w *Window) CloseDevTools() {
	w.inner = w.outer
}

func (w *Window) Click() {
	w.Dispatch(&detectors.Event{Kind: detectors.EventClick})
}

// Key dispatches keydown then keyup and reports whether keydown was blocked.
func (w *Window) Key(key string, target detectors.TargetKind, ctrl, shift bool) bool {
	down := w.Dispatch(&detectors.Event{Kind: detectors.EventKeyDown, Key: key, Target: target, Ctrl: ctrl, Shift: shift})
	w.Dispatch(&detectors.Event{Kind: detectors.EventKeyUp, Key: key, Target: target, Ctrl: ctrl, Shift: shift})
	return down.DefaultPrevented()
}

// Clipboard dispatches a copy, cut, paste or contextmenu event and reports whether it was blocked.
func (w *Window) Clipboard(kind detectors.EventKind) bool {
	return w.Dispatch(&detectors.Event{Kind: kind}).DefaultPrevented()
}
