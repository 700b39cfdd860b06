// Package media provides the local capture stream attached to every peer
// connection.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"

	"github.com/1ureka/beetv/internal/util"
)

// ErrPermissionDenied is wrapped by every PermissionError.
var ErrPermissionDenied = errors.New("media: permission denied")

// PermissionError reports that access to a capture device was refused.
type PermissionError struct {
	Device string
	Err    error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("media: access to %s denied: %v", e.Device, e.Err)
}

func (e *PermissionError) Unwrap() error {
	return e.Err
}

// Capturer acquires and releases the local stream. Release returns only after
// the stream has stopped producing samples.
type Capturer interface {
	Acquire(ctx context.Context) (*Stream, error)
	Release(s *Stream) error
}

// Stream is one acquired audio/video pair.
type Stream struct {
	Audio *webrtc.TrackLocalStaticSample
	Video *webrtc.TrackLocalStaticSample

	audioMuted atomic.Bool
	videoMuted atomic.Bool
	audioSent  atomic.Uint64
	videoSent  atomic.Uint64

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Tracks returns the stream's tracks in attach order.
func (s *Stream) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{s.Audio, s.Video}
}

// ID returns the media stream id shared by both tracks.
func (s *Stream) ID() string {
	return s.Audio.StreamID()
}

// SetAudioMuted pauses or resumes the audio samples. The track stays
// attached; the peer simply stops receiving frames.
func (s *Stream) SetAudioMuted(muted bool) { s.audioMuted.Store(muted) }

// SetVideoMuted pauses or resumes the video samples.
func (s *Stream) SetVideoMuted(muted bool) { s.videoMuted.Store(muted) }

func (s *Stream) AudioMuted() bool { return s.audioMuted.Load() }
func (s *Stream) VideoMuted() bool { return s.videoMuted.Load() }

// Stopped is closed once the stream no longer produces samples.
func (s *Stream) Stopped() <-chan struct{} {
	return s.done
}

func (s *Stream) halt() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

// ──────────────────────────────────────────────────────────────────────────────
// Synthetic capture
// ──────────────────────────────────────────────────────────────────────────────

const (
	audioFrame = 20 * time.Millisecond
	videoFrame = time.Second / 30
)

var (
	// Opus TOC for a 20 ms CELT frame carrying silence.
	opusSilence = []byte{0xf8, 0xff, 0xfe}
	// Minimal VP8 keyframe header (frame tag + start code + 16x16).
	vp8Keyframe = []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x10, 0x00, 0x10, 0x00}
)

// SyntheticCapturer produces a silent opus track and a blank VP8 track
// without touching any device. Deny makes subsequent Acquire calls fail with
// a PermissionError.
type SyntheticCapturer struct {
	streamID string

	mu     sync.Mutex
	denied bool
	active map[*Stream]struct{}
}

// NewSyntheticCapturer returns a capturer whose streams use streamID.
func NewSyntheticCapturer(streamID string) *SyntheticCapturer {
	return &SyntheticCapturer{
		streamID: streamID,
		active:   make(map[*Stream]struct{}),
	}
}

// Deny toggles simulated permission refusal.
func (c *SyntheticCapturer) Deny(denied bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.denied = denied
}

// Active returns the number of streams acquired and not yet released.
func (c *SyntheticCapturer) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

func (c *SyntheticCapturer) Acquire(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	denied := c.denied
	c.mu.Unlock()
	if denied {
		return nil, &PermissionError{Device: "camera and microphone", Err: ErrPermissionDenied}
	}

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", c.streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video", c.streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("create video track: %w", err)
	}

	s := &Stream{
		Audio: audio,
		Video: video,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go pump(s)

	c.mu.Lock()
	c.active[s] = struct{}{}
	c.mu.Unlock()

	util.LogDebug("capture stream %s acquired", c.streamID)
	return s, nil
}

// Release stops s and waits for its sample pump to exit. Releasing a stream
// twice, or a nil stream, is a no-op.
func (c *SyntheticCapturer) Release(s *Stream) error {
	if s == nil {
		return nil
	}
	c.mu.Lock()
	_, ok := c.active[s]
	delete(c.active, s)
	c.mu.Unlock()
	if !ok {
		return nil
	}

	s.halt()
	util.LogDebug("capture stream %s released", c.streamID)
	return nil
}

// pump writes paced samples until the stream is stopped. Writes to a track
// that is not bound to a connection are dropped by pion.
func pump(s *Stream) {
	defer close(s.done)

	audioTick := time.NewTicker(audioFrame)
	defer audioTick.Stop()
	videoTick := time.NewTicker(videoFrame)
	defer videoTick.Stop()

	for {
		select {
		case <-audioTick.C:
			if s.audioMuted.Load() {
				continue
			}
			s.audioSent.Add(1)
			if err := s.Audio.WriteSample(pionmedia.Sample{Data: opusSilence, Duration: audioFrame}); err != nil {
				util.LogDebug("audio sample: %v", err)
			}
		case <-videoTick.C:
			if s.videoMuted.Load() {
				continue
			}
			s.videoSent.Add(1)
			if err := s.Video.WriteSample(pionmedia.Sample{Data: vp8Keyframe, Duration: videoFrame}); err != nil {
				util.LogDebug("video sample: %v", err)
			}
		case <-s.stop:
			return
		}
	}
}
