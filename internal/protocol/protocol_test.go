package protocol

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

func TestEncodeDecode_Offer(t *testing.T) {
	in := Offer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, 1, 42)

	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), `"type":"offer"`) {
		t.Fatalf("wire form missing type tag: %s", data)
	}

	out, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Kind != KindOffer || out.Description.SDP != "v=0 offer" || out.Description.Type != webrtc.SDPTypeOffer {
		t.Fatalf("decoded offer mismatch: %+v", out)
	}
	if out.Priority != 1 || out.Tiebreak != 42 {
		t.Fatalf("arbitration key lost: priority=%d tiebreak=%d", out.Priority, out.Tiebreak)
	}
}

func TestEncodeDecode_Candidate(t *testing.T) {
	mid := "0"
	idx := uint16(0)
	in := Candidate(webrtc.ICECandidateInit{
		Candidate:     "candidate:1 1 udp 2130706431 10.0.0.1 50000 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	})

	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Kind != KindCandidate || out.Candidate.Candidate != in.Candidate.Candidate {
		t.Fatalf("decoded candidate mismatch: %+v", out)
	}
	if out.Candidate.SDPMid == nil || *out.Candidate.SDPMid != "0" {
		t.Fatalf("sdpMid lost")
	}
}

func TestDecode_Rejects(t *testing.T) {
	cases := []struct {
		name string
		data string
		want error
	}{
		{"unknown type", `{"type":"renegotiate"}`, ErrUnknownKind},
		{"offer without sdp", `{"type":"offer"}`, ErrMissingDescription},
		{"answer with offer sdp", `{"type":"answer","sdp":{"type":"offer","sdp":"x"}}`, ErrUnexpectedField},
		{"candidate without body", `{"type":"candidate"}`, ErrMissingCandidate},
		{"candidate with sdp", `{"type":"candidate","candidate":{"candidate":"c"},"sdp":{"type":"offer","sdp":"x"}}`, ErrUnexpectedField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.data))
			if !errors.Is(err, tc.want) {
				t.Fatalf("Decode err=%v, want %v", err, tc.want)
			}
		})
	}

	if _, err := Decode([]byte(`{"type":"answer","sdp":{"type":"answer","sdp":"x"},"extra":1}`)); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
	if _, err := Decode([]byte(`{"type":"answer","sdp":{"type":"answer","sdp":"x"}} {}`)); err == nil {
		t.Fatalf("expected trailing data to be rejected")
	}
}

func TestOutranks(t *testing.T) {
	initiator := Offer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "a"}, 0, 900)
	if !initiator.Outranks(1, 5) {
		t.Fatalf("lower priority must win regardless of tiebreak")
	}
	peer := Offer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "b"}, 0, 7)
	if !peer.Outranks(0, 8) || peer.Outranks(0, 6) {
		t.Fatalf("equal priorities must fall back to the tiebreak")
	}
}

func TestChatFrame(t *testing.T) {
	sent := time.Unix(1700000000, 0).UTC()
	data, err := EncodeChat(&ChatFrame{Seq: 3, SentAt: sent, Text: "olá"})
	if err != nil {
		t.Fatalf("EncodeChat: %v", err)
	}
	f, err := DecodeChat(data)
	if err != nil {
		t.Fatalf("DecodeChat: %v", err)
	}
	if f.Seq != 3 || f.Text != "olá" || !f.SentAt.Equal(sent) {
		t.Fatalf("chat frame mismatch: %+v", f)
	}

	if _, err := EncodeChat(&ChatFrame{Text: strings.Repeat("x", MaxChatText+1)}); !errors.Is(err, ErrChatTooLong) {
		t.Fatalf("EncodeChat err=%v, want ErrChatTooLong", err)
	}
	if _, err := DecodeChat([]byte{0xc1}); err == nil {
		t.Fatalf("expected garbage to fail decoding")
	}
}
