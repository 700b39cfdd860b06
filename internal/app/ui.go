// Package app contains the participant-side orchestration: it binds the
// relay client, the capture device and one negotiation Session per pairing.
package app

import (
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/beetv/internal/media"
	"github.com/1ureka/beetv/internal/negotiation"
	"github.com/1ureka/beetv/internal/signaling"
)

// UI receives everything the participant should see. Calls may arrive from
// several goroutines; implementations must not call back into Peer
// synchronously.
type UI interface {
	Waiting()
	Paired(room, peer string, mode signaling.Mode)
	Ended(room, reason string)

	OnLocalStreamReady(s *media.Stream)
	OnRemoteStreamReady(track *webrtc.TrackRemote)
	OnConnectionStateChanged(state negotiation.ConnectionState)
	OnPermissionDenied(err error)

	ChatOpen(peer string)
	Chat(sender, text string)
	Error(msg string)
}

// Relay is the participant's side of the matchmaking relay.
// *signaling.Client implements it.
type Relay interface {
	negotiation.SignalSender
	JoinQueue(mode signaling.Mode) error
	Leave(room string) error
	SendChat(room, text string) error
}
