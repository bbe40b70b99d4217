package sim

import (
	"context"
	"time"

	"proctor/internal/proctoring/identity"
	"proctor/internal/proctoring/models"
	"proctor/internal/proctoring/permission"
)

type Track struct {
	kind    permission.TrackKind
	surface permission.SurfaceKind
	ended   []func()
	Stopped bool
}

func (t *Track) Kind() permission.TrackKind             { return t.kind }
func (t *Track) DisplaySurface() permission.SurfaceKind { return t.surface }
func (t *Track) Stop()                                  { t.Stopped = true }

func (t *Track) OnEnded(fn func()) func() {
	idx := len(t.ended)
	t.ended = append(t.ended, fn)
	return func() { t.ended[idx] = nil }
}

// End fires the ended callbacks, as when the student presses "Stop sharing".
func (t *Track) End() {
	t.Stopped = true
	for _, fn := range t.ended {
		if fn != nil {
			fn()
		}
	}
}

type Stream struct {
	tracks  []permission.MediaTrack
	Stopped bool
}

func (s *Stream) Tracks() []permission.MediaTrack { return s.tracks }

func (s *Stream) Stop() {
	s.Stopped = true
	for _, t := range s.tracks {
		t.Stop()
	}
}

// Devices is a scriptable permission.MediaDevices.
type Devices struct {
	// Surface is what the student picks in the share dialog.
	Surface permission.SurfaceKind
	// Deny maps a channel to the error its request fails with.
	Deny map[models.Channel]error

	Screen *Track
	opened []*Stream
}

func NewDevices() *Devices {
	return &Devices{Surface: permission.SurfaceMonitor, Deny: map[models.Channel]error{}}
}

func (d *Devices) GetDisplayMedia(context.Context) (permission.MediaStream, error) {
	if err := d.Deny[models.ChannelScreenShare]; err != nil {
		return nil, err
	}
	d.Screen = &Track{kind: permission.TrackVideo, surface: d.Surface}
	s := &Stream{tracks: []permission.MediaTrack{d.Screen}}
	d.opened = append(d.opened, s)
	return s, nil
}

func (d *Devices) GetUserMedia(_ context.Context, c permission.MediaConstraints) (permission.MediaStream, error) {
	ch := models.ChannelCamera
	kind := permission.TrackVideo
	if c.Audio {
		ch = models.ChannelMicrophone
		kind = permission.TrackAudio
	}
	if err := d.Deny[ch]; err != nil {
		return nil, err
	}
	s := &Stream{tracks: []permission.MediaTrack{&Track{kind: kind}}}
	d.opened = append(d.opened, s)
	return s, nil
}

// StopSharing ends the current screen-share track.
func (d *Devices) StopSharing() {
	if d.Screen != nil {
		d.Screen.End()
	}
}

// OpenStreams counts streams that were acquired and never stopped.
func (d *Devices) OpenStreams() int {
	n := 0
	for _, s := range d.opened {
		if !s.Stopped {
			n++
		}
	}
	return n
}

// Geolocator is a scriptable permission.Geolocator.
type Geolocator struct {
	Position permission.Position
	Err      error
	// Hang blocks until the context expires.
	Hang bool
}

func (g *Geolocator) CurrentPosition(ctx context.Context) (permission.Position, error) {
	if g.Hang {
		<-ctx.Done()
		return permission.Position{}, ctx.Err()
	}
	if g.Err != nil {
		return permission.Position{}, g.Err
	}
	pos := g.Position
	if pos.Timestamp.IsZero() {
		pos.Timestamp = time.Now()
	}
	return pos, nil
}

// Preview is both the camera preview sink and the frame source for verification.
type Preview struct {
	stream permission.MediaStream
}

func (p *Preview) Attach(s permission.MediaStream) error {
	p.stream = s
	return nil
}

func (p *Preview) Detach() { p.stream = nil }

func (p *Preview) CaptureFrame(context.Context) (identity.Frame, error) {
	if p.stream == nil {
		return identity.Frame{}, errNoPreview
	}
	return identity.Frame{Width: 640, Height: 480}, nil
}
