package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

func TestSyntheticCapturer_AcquireRelease(t *testing.T) {
	c := NewSyntheticCapturer("beetv-test")

	s, err := c.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if s.ID() != "beetv-test" {
		t.Fatalf("stream id=%q", s.ID())
	}
	tracks := s.Tracks()
	if len(tracks) != 2 || tracks[0].Kind() != webrtc.RTPCodecTypeAudio || tracks[1].Kind() != webrtc.RTPCodecTypeVideo {
		t.Fatalf("unexpected tracks: %v", tracks)
	}
	if s.Audio.Codec().MimeType != webrtc.MimeTypeOpus || s.Video.Codec().MimeType != webrtc.MimeTypeVP8 {
		t.Fatalf("unexpected codecs: %s / %s", s.Audio.Codec().MimeType, s.Video.Codec().MimeType)
	}
	if c.Active() != 1 {
		t.Fatalf("active=%d, want 1", c.Active())
	}

	if err := c.Release(s); err != nil {
		t.Fatalf("Release: %v", err)
	}
	select {
	case <-s.Stopped():
	default:
		t.Fatalf("Release returned before the stream stopped")
	}
	if err := c.Release(s); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if err := c.Release(nil); err != nil {
		t.Fatalf("Release(nil): %v", err)
	}
	if c.Active() != 0 {
		t.Fatalf("active=%d, want 0", c.Active())
	}
}

func TestSyntheticCapturer_Deny(t *testing.T) {
	c := NewSyntheticCapturer("beetv-test")
	c.Deny(true)

	_, err := c.Acquire(context.Background())
	var perr *PermissionError
	if !errors.As(err, &perr) || !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err=%v, want *PermissionError", err)
	}

	c.Deny(false)
	s, err := c.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after retry: %v", err)
	}
	_ = c.Release(s)
}

func TestSyntheticCapturer_Reacquire(t *testing.T) {
	c := NewSyntheticCapturer("beetv-test")
	first, err := c.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	time.Sleep(3 * audioFrame)
	_ = c.Release(first)

	second, err := c.Acquire(context.Background())
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	defer c.Release(second)
	if second == first || second.Audio == first.Audio {
		t.Fatalf("reacquire returned the released stream")
	}
}

func TestSyntheticCapturer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSyntheticCapturer("x").Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestStream_Mute(t *testing.T) {
	c := NewSyntheticCapturer("beetv-test")
	s, err := c.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer c.Release(s)

	s.SetAudioMuted(true)
	if !s.AudioMuted() || s.VideoMuted() {
		t.Fatalf("muted audio=%v video=%v", s.AudioMuted(), s.VideoMuted())
	}

	// A sample already in flight may land right after muting.
	time.Sleep(50 * time.Millisecond)
	audio, video := s.audioSent.Load(), s.videoSent.Load()
	time.Sleep(200 * time.Millisecond)
	if got := s.audioSent.Load(); got != audio {
		t.Fatalf("audio kept flowing while muted: %d -> %d", audio, got)
	}
	if got := s.videoSent.Load(); got <= video {
		t.Fatalf("video stopped: %d -> %d", video, got)
	}

	s.SetAudioMuted(false)
	time.Sleep(200 * time.Millisecond)
	if got := s.audioSent.Load(); got <= audio {
		t.Fatalf("audio did not resume: %d -> %d", audio, got)
	}
}
