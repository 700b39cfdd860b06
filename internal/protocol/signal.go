// Package protocol defines the payloads exchanged between two peers: the
// signaling variant relayed by the matchmaker and the chat frames sent over
// the peer DataChannel.
package protocol

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Kind tags a Signal. The zero value is invalid.
type Kind uint8

const (
	KindOffer     Kind = 0x01 // session description offer
	KindAnswer    Kind = 0x02 // session description answer
	KindCandidate Kind = 0x03 // trickled ICE candidate
)

func (k Kind) String() string {
	switch k {
	case KindOffer:
		return "offer"
	case KindAnswer:
		return "answer"
	case KindCandidate:
		return "candidate"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	ErrUnknownKind        = errors.New("protocol: unknown signal kind")
	ErrMissingDescription = errors.New("protocol: missing session description")
	ErrMissingCandidate   = errors.New("protocol: missing candidate")
	ErrUnexpectedField    = errors.New("protocol: unexpected field for signal kind")
)

// Signal is one signaling payload. Exactly one of Description or Candidate is
// set, as dictated by Kind. Priority and Tiebreak are only meaningful on
// offers and order two colliding offers: the lower pair wins.
type Signal struct {
	Kind        Kind
	Description *webrtc.SessionDescription
	Candidate   *webrtc.ICECandidateInit
	Priority    int
	Tiebreak    uint64
}

// Offer builds an offer signal carrying the sender's arbitration key.
func Offer(desc webrtc.SessionDescription, priority int, tiebreak uint64) Signal {
	return Signal{Kind: KindOffer, Description: &desc, Priority: priority, Tiebreak: tiebreak}
}

// Answer builds an answer signal.
func Answer(desc webrtc.SessionDescription) Signal {
	return Signal{Kind: KindAnswer, Description: &desc}
}

// Candidate builds a candidate signal.
func Candidate(c webrtc.ICECandidateInit) Signal {
	return Signal{Kind: KindCandidate, Candidate: &c}
}

// Outranks reports whether s (an offer) wins a glare collision against an
// offer carrying the given arbitration key.
func (s Signal) Outranks(priority int, tiebreak uint64) bool {
	if s.Priority != priority {
		return s.Priority < priority
	}
	return s.Tiebreak < tiebreak
}

// Validate checks that the populated fields match Kind.
func (s Signal) Validate() error {
	switch s.Kind {
	case KindOffer, KindAnswer:
		if s.Description == nil || s.Description.SDP == "" {
			return fmt.Errorf("%w (%s)", ErrMissingDescription, s.Kind)
		}
		want := webrtc.SDPTypeOffer
		if s.Kind == KindAnswer {
			want = webrtc.SDPTypeAnswer
		}
		if s.Description.Type != want {
			return fmt.Errorf("%w: %s carries sdp type %s", ErrUnexpectedField, s.Kind, s.Description.Type)
		}
		if s.Candidate != nil {
			return fmt.Errorf("%w: %s carries a candidate", ErrUnexpectedField, s.Kind)
		}
	case KindCandidate:
		if s.Candidate == nil || s.Candidate.Candidate == "" {
			return ErrMissingCandidate
		}
		if s.Description != nil {
			return fmt.Errorf("%w: candidate carries a description", ErrUnexpectedField)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, uint8(s.Kind))
	}
	return nil
}
