package models

// Channel identifies one sensing channel the monitor must acquire.
type Channel string

const (
	ChannelScreenShare Channel = "screen_share"
	ChannelMicrophone  Channel = "microphone"
	ChannelCamera      Channel = "camera"
	ChannelLocation    Channel = "location"
	ChannelFaceMatch   Channel = "face_match"
)

// Channels lists every channel in acquisition order.
var Channels = []Channel{ChannelScreenShare, ChannelMicrophone, ChannelCamera, ChannelLocation, ChannelFaceMatch}

// GrantStatus is the tri-state of a channel.
type GrantStatus string

const (
	GrantUngranted GrantStatus = "ungranted"
	GrantGranted   GrantStatus = "granted"
	GrantError     GrantStatus = "error"
)

// ChannelState is the state of one channel. Error is set only when Status is GrantError.
type ChannelState struct {
	Status   GrantStatus `json:"status"`
	Error    string      `json:"error,omitempty"`
	ByBypass bool        `json:"byBypass,omitempty"`
}

func (c ChannelState) Granted() bool { return c.Status == GrantGranted }

// Granted builds a granted state.
func Granted() ChannelState { return ChannelState{Status: GrantGranted} }

// GrantedByBypass builds a state granted without acquisition.
func GrantedByBypass() ChannelState { return ChannelState{Status: GrantGranted, ByBypass: true} }

// Failed builds an error state carrying a human-readable message.
func Failed(msg string) ChannelState { return ChannelState{Status: GrantError, Error: msg} }

// PermissionState is the snapshot of every channel.
type PermissionState struct {
	ScreenShare ChannelState `json:"screenShare"`
	Microphone  ChannelState `json:"microphone"`
	Camera      ChannelState `json:"camera"`
	Location    ChannelState `json:"location"`
	FaceMatch   ChannelState `json:"faceMatch"`
}

// NewPermissionState returns every channel ungranted.
func NewPermissionState() PermissionState {
	s := PermissionState{}
	for _, ch := range Channels {
		s.Set(ch, ChannelState{Status: GrantUngranted})
	}
	return s
}

// Get returns the state of ch.
func (s PermissionState) Get(ch Channel) ChannelState {
	switch ch {
	case ChannelScreenShare:
		return s.ScreenShare
	case ChannelMicrophone:
		return s.Microphone
	case ChannelCamera:
		return s.Camera
	case ChannelLocation:
		return s.Location
	case ChannelFaceMatch:
		return s.FaceMatch
	}
	return ChannelState{Status: GrantUngranted}
}

// Set replaces the state of ch.
func (s *PermissionState) Set(ch Channel, st ChannelState) {
	switch ch {
	case ChannelScreenShare:
		s.ScreenShare = st
	case ChannelMicrophone:
		s.Microphone = st
	case ChannelCamera:
		s.Camera = st
	case ChannelLocation:
		s.Location = st
	case ChannelFaceMatch:
		s.FaceMatch = st
	}
}

// SensorsGranted reports whether screen share, microphone, camera and location are all granted.
func (s PermissionState) SensorsGranted() bool {
	return s.ScreenShare.Granted() && s.Microphone.Granted() && s.Camera.Granted() && s.Location.Granted()
}
