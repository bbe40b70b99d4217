package permission

import (
	"context"
	"time"
)

// SurfaceKind is the display surface a screen-share stream negotiated.
type SurfaceKind string

const (
	SurfaceMonitor SurfaceKind = "monitor"
	SurfaceWindow  SurfaceKind = "window"
	SurfaceBrowser SurfaceKind = "browser"
)

// TrackKind distinguishes audio from video tracks.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// MediaTrack is one track of an acquired stream.
type MediaTrack interface {
	Kind() TrackKind
	// DisplaySurface is only meaningful for screen-share video tracks.
	DisplaySurface() SurfaceKind
	// OnEnded registers fn for when the track ends outside the monitor's control,
	// e.g. the student presses "Stop sharing". The returned func unregisters it.
	OnEnded(fn func()) (remove func())
	Stop()
}

// MediaStream is an acquired capture stream. Streams are not released by the
// platform on their own; Stop must be called explicitly.
type MediaStream interface {
	Tracks() []MediaTrack
	Stop()
}

// MediaConstraints selects which user-media tracks to request.
type MediaConstraints struct {
	Audio bool
	Video bool
}

// MediaDevices is the platform capture capability.
type MediaDevices interface {
	GetDisplayMedia(ctx context.Context) (MediaStream, error)
	GetUserMedia(ctx context.Context, constraints MediaConstraints) (MediaStream, error)
}

// Position is a geolocation fix.
type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp time.Time
}

// Geolocator is the platform location capability. Implementations must honor ctx cancellation.
type Geolocator interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// PreviewSink displays the live camera stream and feeds the identity verifier.
type PreviewSink interface {
	Attach(stream MediaStream) error
	Detach()
}
