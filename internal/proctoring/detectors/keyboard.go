package detectors

import "strings"

// Keyboard intercepts keys in the capture phase. It is prevention only.
type Keyboard struct {
	win Window
}

func NewKeyboard(win Window) *Keyboard {
	return &Keyboard{win: win}
}

func (k *Keyboard) Name() string { return "keyboard" }

func (k *Keyboard) Start() Disposer {
	handler := func(e *Event) {
		if ShouldBlock(e) {
			e.PreventDefault()
			e.StopPropagation()
		}
	}
	removeDown := k.win.AddListener(EventKeyDown, handler, ListenOptions{Capture: true})
	removeUp := k.win.AddListener(EventKeyUp, handler, ListenOptions{Capture: true})
	return once(removeDown, removeUp)
}

// ShouldBlock decides whether a key event must be suppressed.
//
// Escape and F11 are always blocked. Inside editing surfaces only function
// keys and devtools chords are blocked, on keydown and keyup alike. Anywhere
// else every keydown except Tab is blocked.
func ShouldBlock(e *Event) bool {
	if e.Kind != EventKeyDown && e.Kind != EventKeyUp {
		return false
	}
	if e.Key == "Escape" || e.Key == "F11" {
		return true
	}
	if e.Target.Editing() {
		return isFunctionKey(e.Key) || isDevToolsChord(e)
	}
	if e.Kind == EventKeyUp {
		return false
	}
	return e.Key != "Tab"
}

func isFunctionKey(key string) bool {
	switch key {
	case "F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9", "F10", "F11", "F12":
		return true
	}
	return false
}

func isDevToolsChord(e *Event) bool {
	if !(e.Ctrl || e.Meta) || !(e.Shift || e.Alt) {
		return false
	}
	switch strings.ToUpper(e.Key) {
	case "I", "J", "C":
		return true
	}
	return false
}
