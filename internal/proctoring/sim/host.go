package sim

import (
	"context"
	"sync"

	"proctor/internal/proctoring/models"
)

// Host records every callback the monitor makes.
type Host struct {
	mu        sync.Mutex
	Reports   []models.Report
	Submits   []bool
	Exits     int
	SubmitErr error
}

func (h *Host) OnViolation(_ context.Context, r models.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Reports = append(h.Reports, r)
}

func (h *Host) OnSubmit(_ context.Context, cancelled bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Submits = append(h.Submits, cancelled)
	return h.SubmitErr
}

func (h *Host) OnExitFullscreen(context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Exits++
}

// LastReport returns the most recent flush, if any.
func (h *Host) LastReport() (models.Report, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.Reports) == 0 {
		return models.Report{}, false
	}
	return h.Reports[len(h.Reports)-1], true
}

func (h *Host) SubmitCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Submits)
}

// Presenter records what the student would see.
type Presenter struct {
	mu       sync.Mutex
	Warnings []models.Warning
	Errors   []string
	Visible  bool
}

func (p *Presenter) ShowWarning(w models.Warning) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Warnings = append(p.Warnings, w)
	p.Visible = true
}

func (p *Presenter) HideWarning() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Visible = false
}

func (p *Presenter) ShowError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Errors = append(p.Errors, msg)
}

// Titles lists the titles of every shown warning, repeats included.
func (p *Presenter) Titles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Warnings))
	for _, w := range p.Warnings {
		out = append(out, w.Title)
	}
	return out
}
