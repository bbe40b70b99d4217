package detectors

// ClipboardGuard blocks copy, cut, paste and the context menu. It never records violations.
type ClipboardGuard struct {
	win Window
}

func NewClipboardGuard(win Window) *ClipboardGuard {
	return &ClipboardGuard{win: win}
}

func (g *ClipboardGuard) Name() string { return "clipboard" }

func (g *ClipboardGuard) Start() Disposer {
	block := func(e *Event) { e.PreventDefault() }
	var removes []func()
	for _, kind := range []EventKind{EventCopy, EventCut, EventPaste, EventContextMenu} {
		removes = append(removes, g.win.AddListener(kind, block, ListenOptions{}))
	}
	return once(removes...)
}
