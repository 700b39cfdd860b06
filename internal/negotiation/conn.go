package negotiation

import (
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/beetv/internal/protocol"
)

// Conn is the transport handle a Session negotiates over. It is satisfied by
// *transport.Transport; tests provide in-memory fakes.
//
// Callbacks may be invoked from any goroutine. A nil candidate (end of
// gathering) is never delivered.
type Conn interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	AddTrack(webrtc.TrackLocal) error

	OnICECandidate(func(webrtc.ICECandidateInit))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	OnRemoteTrack(func(*webrtc.TrackRemote))

	Close() error
}

// ConnFactory opens a fresh Conn. A Session calls it once when negotiation
// starts and again after yielding in a glare collision.
type ConnFactory func() (Conn, error)

// SignalSender relays a payload to the other member of room.
type SignalSender interface {
	SendSignal(room string, sig protocol.Signal) error
}

// Observer receives the Session's UI-facing notifications. Methods run on the
// Session's event loop: they must not block and must not call back into the
// Session.
type Observer interface {
	OnRemoteStreamReady(track *webrtc.TrackRemote)
	OnConnectionStateChanged(state ConnectionState)
}

type nopObserver struct{}

func (nopObserver) OnRemoteStreamReady(*webrtc.TrackRemote)   {}
func (nopObserver) OnConnectionStateChanged(ConnectionState) {}
