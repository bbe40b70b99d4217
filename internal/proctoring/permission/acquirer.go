package permission

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"proctor/internal/proctoring/metrics"
	"proctor/internal/proctoring/models"
)

// Platform failures an adapter should wrap so the acquirer can pick a corrective message.
var (
	ErrNotAllowed  = errors.New("permission denied by user or browser")
	ErrNoDevice    = errors.New("no capture device available")
	ErrUnsupported = errors.New("capability not supported")
	// ErrNoStream marks an adapter that reported success without a stream.
	ErrNoStream = errors.New("capture returned no stream")
)

// Corrective messages shown inline next to each channel.
const (
	MsgEntireScreenRequired = "Please share your Entire Screen. Sharing a window or browser tab is not allowed."
	MsgScreenShareStopped   = "Screen sharing was stopped. Please share your entire screen again."
	MsgCameraPreview        = "Unable to display the camera preview. Please reload and try again."
	MsgLocationTimeout      = "Location request timed out. Please allow location access and try again."
)

const defaultGeolocationTimeout = 10 * time.Second

// defaultShareStopCooldown matches the behavioral detectors' cooldown.
const defaultShareStopCooldown = 1500 * time.Millisecond

// ViolationRecorder is the shared recorder the screen-share termination hook reports through.
type ViolationRecorder interface {
	Record(violationType models.ViolationType, details string, cooldown time.Duration) bool
}

type Option func(*Acquirer)

// WithLogger sets the logger for the acquirer.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Acquirer) {
		a.logger = logger
	}
}

// WithMetrics sets the metrics instance for the acquirer.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Acquirer) {
		a.metrics = m
	}
}

// WithGeolocationTimeout overrides the 10s location timeout.
func WithGeolocationTimeout(d time.Duration) Option {
	return func(a *Acquirer) {
		if d > 0 {
			a.geoTimeout = d
		}
	}
}

// Acquirer requests, validates and holds every sensing channel. Request methods
// are idempotent, never return errors, and ignore re-entrant calls while a
// request for the same channel is in flight.
type Acquirer struct {
	devices    MediaDevices
	geo        Geolocator
	preview    PreviewSink
	logger     *slog.Logger
	metrics    *metrics.Metrics
	geoTimeout time.Duration

	mu         sync.Mutex
	state      models.PermissionState
	inflight   map[models.Channel]bool
	recorder   ViolationRecorder
	screen     MediaStream
	screenHook func()
	microphone MediaStream
	camera     MediaStream
	lastFix    *Position
}

func New(devices MediaDevices, geo Geolocator, preview PreviewSink, opts ...Option) *Acquirer {
	a := &Acquirer{
		devices:    devices,
		geo:        geo,
		preview:    preview,
		geoTimeout: defaultGeolocationTimeout,
		state:      models.NewPermissionState(),
		inflight:   make(map[models.Channel]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetRecorder installs the recorder used when a granted screen share ends.
func (a *Acquirer) SetRecorder(r ViolationRecorder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recorder = r
}

// State returns a snapshot of every channel.
func (a *Acquirer) State() models.PermissionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Ready is the aggregate entry gate for the full path.
func (a *Acquirer) Ready(status models.VerificationStatus) bool {
	s := a.State()
	return s.SensorsGranted() && status == models.VerificationSuccess
}

// begin claims the in-flight slot for ch. proceed is false when the
// channel is already granted (granted=true) or a request is already running.
func (a *Acquirer) begin(ch models.Channel) (proceed bool, granted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Get(ch).Granted() {
		return false, true
	}
	if a.inflight[ch] {
		a.observe(ch, "in_flight")
		return false, false
	}
	a.inflight[ch] = true
	return true, false
}

// finishLocked releases the in-flight slot and stores st. Caller holds a.mu.
func (a *Acquirer) finishLocked(ch models.Channel, st models.ChannelState) {
	delete(a.inflight, ch)
	a.state.Set(ch, st)
	if st.Granted() {
		a.observe(ch, "granted")
	} else {
		a.observe(ch, "failed")
	}
}

func (a *Acquirer) fail(ctx context.Context, ch models.Channel, msg string, err error) bool {
	a.mu.Lock()
	a.finishLocked(ch, models.Failed(msg))
	a.mu.Unlock()
	if a.logger != nil {
		a.logger.WarnContext(ctx, "permission request failed",
			"channel", ch,
			"error", err,
			"message", msg,
		)
	}
	return false
}

// RequestScreenShare acquires a display stream and accepts it only when the
// student shared an entire monitor. Any other surface is released immediately.
func (a *Acquirer) RequestScreenShare(ctx context.Context) bool {
	proceed, granted := a.begin(models.ChannelScreenShare)
	if !proceed {
		return granted
	}

	stream, err := a.devices.GetDisplayMedia(ctx)
	if err == nil && stream == nil {
		err = ErrNoStream
	}
	if err != nil {
		return a.fail(ctx, models.ChannelScreenShare, failureMessage(models.ChannelScreenShare, err), err)
	}
	video := firstTrack(stream, TrackVideo)
	if video == nil || video.DisplaySurface() != SurfaceMonitor {
		stream.Stop()
		surface := SurfaceKind("")
		if video != nil {
			surface = video.DisplaySurface()
		}
		a.observe(models.ChannelScreenShare, "invalid_surface")
		return a.fail(ctx, models.ChannelScreenShare, MsgEntireScreenRequired,
			errors.New("display surface "+string(surface)+" is not a monitor"))
	}

	remove := video.OnEnded(func() { a.handleScreenShareEnded(stream) })

	a.mu.Lock()
	a.screen = stream
	a.screenHook = remove
	a.finishLocked(models.ChannelScreenShare, models.Granted())
	a.mu.Unlock()
	return true
}

func (a *Acquirer) handleScreenShareEnded(stream MediaStream) {
	a.mu.Lock()
	if a.screen != stream {
		a.mu.Unlock()
		return
	}
	a.screen = nil
	if a.screenHook != nil {
		a.screenHook()
		a.screenHook = nil
	}
	a.state.Set(models.ChannelScreenShare, models.Failed(MsgScreenShareStopped))
	recorder := a.recorder
	a.mu.Unlock()

	stream.Stop()
	if a.logger != nil {
		a.logger.Warn("screen share ended by student", "channel", models.ChannelScreenShare)
	}
	if recorder != nil {
		recorder.Record(models.ViolationScreenShareStopped, "", defaultShareStopCooldown)
	}
}

// RequestMicrophone acquires an audio-only stream.
func (a *Acquirer) RequestMicrophone(ctx context.Context) bool {
	proceed, granted := a.begin(models.ChannelMicrophone)
	if !proceed {
		return granted
	}
	stream, err := a.devices.GetUserMedia(ctx, MediaConstraints{Audio: true})
	if err == nil && stream == nil {
		err = ErrNoStream
	}
	if err != nil {
		return a.fail(ctx, models.ChannelMicrophone, failureMessage(models.ChannelMicrophone, err), err)
	}

	a.mu.Lock()
	a.microphone = stream
	a.finishLocked(models.ChannelMicrophone, models.Granted())
	a.mu.Unlock()
	return true
}

// RequestCamera acquires a video stream and attaches it to the preview sink.
func (a *Acquirer) RequestCamera(ctx context.Context) bool {
	proceed, granted := a.begin(models.ChannelCamera)
	if !proceed {
		return granted
	}
	stream, err := a.devices.GetUserMedia(ctx, MediaConstraints{Video: true})
	if err == nil && stream == nil {
		err = ErrNoStream
	}
	if err != nil {
		return a.fail(ctx, models.ChannelCamera, failureMessage(models.ChannelCamera, err), err)
	}
	if a.preview != nil {
		if err := a.preview.Attach(stream); err != nil {
			stream.Stop()
			return a.fail(ctx, models.ChannelCamera, MsgCameraPreview, err)
		}
	}

	a.mu.Lock()
	a.camera = stream
	a.finishLocked(models.ChannelCamera, models.Granted())
	a.mu.Unlock()
	return true
}

// RequestLocation obtains one position fix within the geolocation timeout.
func (a *Acquirer) RequestLocation(ctx context.Context) bool {
	proceed, granted := a.begin(models.ChannelLocation)
	if !proceed {
		return granted
	}
	ctx, cancel := context.WithTimeout(ctx, a.geoTimeout)
	defer cancel()

	pos, err := a.geo.CurrentPosition(ctx)
	if err != nil {
		msg := failureMessage(models.ChannelLocation, err)
		if errors.Is(err, context.DeadlineExceeded) {
			msg = MsgLocationTimeout
		}
		return a.fail(ctx, models.ChannelLocation, msg, err)
	}

	a.mu.Lock()
	a.lastFix = &pos
	a.finishLocked(models.ChannelLocation, models.Granted())
	a.mu.Unlock()
	return true
}

// Location returns the last position fix, if any.
func (a *Acquirer) Location() (Position, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastFix == nil {
		return Position{}, false
	}
	return *a.lastFix, true
}

// SetFaceMatch mirrors the identity verification outcome into the permission state.
func (a *Acquirer) SetFaceMatch(result models.VerificationResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch result.Status {
	case models.VerificationSuccess:
		a.state.FaceMatch = models.Granted()
	case models.VerificationFailed:
		a.state.FaceMatch = models.Failed(result.Message)
	}
}

// GrantByBypass marks every channel except screen share as granted without
// acquiring anything. Screen share must still be acquired and validated.
func (a *Acquirer) GrantByBypass() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range []models.Channel{models.ChannelMicrophone, models.ChannelCamera, models.ChannelLocation, models.ChannelFaceMatch} {
		if !a.state.Get(ch).Granted() {
			a.state.Set(ch, models.GrantedByBypass())
		}
	}
}

// Release stops every held stream. The platform does not do it for us.
func (a *Acquirer) Release() {
	a.mu.Lock()
	screen, mic, camera := a.screen, a.microphone, a.camera
	hook := a.screenHook
	a.screen, a.microphone, a.camera, a.screenHook = nil, nil, nil, nil
	a.mu.Unlock()

	if hook != nil {
		hook()
	}
	for _, s := range []MediaStream{screen, mic, camera} {
		if s != nil {
			s.Stop()
		}
	}
	if camera != nil && a.preview != nil {
		a.preview.Detach()
	}
}

// Reset releases streams and returns every channel to ungranted.
func (a *Acquirer) Reset() {
	a.Release()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = models.NewPermissionState()
	a.lastFix = nil
}

func (a *Acquirer) observe(ch models.Channel, result string) {
	if a.metrics != nil {
		a.metrics.IncrementPermissionRequests(string(ch), result)
	}
}

func firstTrack(stream MediaStream, kind TrackKind) MediaTrack {
	if stream == nil {
		return nil
	}
	for _, t := range stream.Tracks() {
		if t.Kind() == kind {
			return t
		}
	}
	return nil
}

func failureMessage(ch models.Channel, err error) string {
	label := channelLabel(ch)
	switch {
	case errors.Is(err, ErrNotAllowed):
		return label + " permission was denied. Please allow access and try again."
	case errors.Is(err, ErrNoDevice):
		return "No " + label + " device was found. Please connect one and try again."
	case errors.Is(err, ErrUnsupported):
		return label + " is not supported by this browser."
	default:
		return "Unable to access " + label + ". Please try again."
	}
}

func channelLabel(ch models.Channel) string {
	switch ch {
	case models.ChannelScreenShare:
		return "Screen sharing"
	case models.ChannelMicrophone:
		return "Microphone"
	case models.ChannelCamera:
		return "Camera"
	case models.ChannelLocation:
		return "Location"
	default:
		return string(ch)
	}
}
