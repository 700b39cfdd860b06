package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pion/webrtc/v4"
)

// Wire names of each Kind. They only exist at the codec boundary.
const (
	wireOffer     = "offer"
	wireAnswer    = "answer"
	wireCandidate = "candidate"
)

type wireSDP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type wireCandidateInit struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

type wireSignal struct {
	Type      string             `json:"type"`
	SDP       *wireSDP           `json:"sdp,omitempty"`
	Candidate *wireCandidateInit `json:"candidate,omitempty"`
	Priority  int                `json:"priority,omitempty"`
	Tiebreak  uint64             `json:"tiebreak,omitempty"`
}

// Encode serializes a Signal to its JSON wire form.
func Encode(s Signal) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	w := wireSignal{Priority: s.Priority, Tiebreak: s.Tiebreak}
	switch s.Kind {
	case KindOffer:
		w.Type = wireOffer
	case KindAnswer:
		w.Type = wireAnswer
	case KindCandidate:
		w.Type = wireCandidate
	}

	if s.Description != nil {
		w.SDP = &wireSDP{Type: s.Description.Type.String(), SDP: s.Description.SDP}
	}
	if c := s.Candidate; c != nil {
		w.Candidate = &wireCandidateInit{
			Candidate:        c.Candidate,
			SDPMid:           c.SDPMid,
			SDPMLineIndex:    c.SDPMLineIndex,
			UsernameFragment: c.UsernameFragment,
		}
	}

	return json.Marshal(w)
}

// Decode parses and validates a Signal. Unknown fields and trailing data are
// rejected.
func Decode(data []byte) (Signal, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w wireSignal
	if err := dec.Decode(&w); err != nil {
		return Signal{}, fmt.Errorf("decode signal: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Signal{}, fmt.Errorf("decode signal: unexpected trailing data")
	}

	var s Signal
	switch w.Type {
	case wireOffer:
		s.Kind = KindOffer
	case wireAnswer:
		s.Kind = KindAnswer
	case wireCandidate:
		s.Kind = KindCandidate
	default:
		return Signal{}, fmt.Errorf("%w: %q", ErrUnknownKind, w.Type)
	}

	s.Priority = w.Priority
	s.Tiebreak = w.Tiebreak

	if w.SDP != nil {
		desc := webrtc.SessionDescription{Type: webrtc.NewSDPType(w.SDP.Type), SDP: w.SDP.SDP}
		s.Description = &desc
	}
	if c := w.Candidate; c != nil {
		s.Candidate = &webrtc.ICECandidateInit{
			Candidate:        c.Candidate,
			SDPMid:           c.SDPMid,
			SDPMLineIndex:    c.SDPMLineIndex,
			UsernameFragment: c.UsernameFragment,
		}
	}

	if err := s.Validate(); err != nil {
		return Signal{}, err
	}
	return s, nil
}
