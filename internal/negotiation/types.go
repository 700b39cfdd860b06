// Package negotiation implements the per-pairing peer-connection negotiation
// core: the Session state machine (offer/answer, glare arbitration, teardown)
// and the CandidateBuffer that parks remote ICE candidates until the remote
// description is known.
package negotiation

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Role is fixed for a Session's lifetime.
type Role uint8

const (
	RoleUndetermined Role = iota
	RoleInitiator
	RoleResponder
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return "undetermined"
	}
}

// ParseRole maps the matchmaker's wire name to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "initiator":
		return RoleInitiator, nil
	case "responder":
		return RoleResponder, nil
	default:
		return RoleUndetermined, fmt.Errorf("%w: %q", ErrRoleUndetermined, s)
	}
}

// Phase is the Session's position in the negotiation.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseAwaitingLocalOffer
	PhaseAwaitingRemoteAnswer
	PhaseAwaitingRemoteOffer
	PhaseAwaitingLocalAnswer
	PhaseStable
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingLocalOffer:
		return "awaiting-local-offer"
	case PhaseAwaitingRemoteAnswer:
		return "awaiting-remote-answer"
	case PhaseAwaitingRemoteOffer:
		return "awaiting-remote-offer"
	case PhaseAwaitingLocalAnswer:
		return "awaiting-local-answer"
	case PhaseStable:
		return "stable"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// ConnectionState is the subset of transport states reported to the UI.
type ConnectionState uint8

const (
	StateConnecting ConnectionState = iota + 1
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// connectionStateFrom maps a pion state; false means the state is not
// surfaced (new/unknown).
func connectionStateFrom(st webrtc.PeerConnectionState) (ConnectionState, bool) {
	switch st {
	case webrtc.PeerConnectionStateConnecting:
		return StateConnecting, true
	case webrtc.PeerConnectionStateConnected:
		return StateConnected, true
	case webrtc.PeerConnectionStateDisconnected:
		return StateDisconnected, true
	case webrtc.PeerConnectionStateFailed:
		return StateFailed, true
	case webrtc.PeerConnectionStateClosed:
		return StateClosed, true
	default:
		return 0, false
	}
}
