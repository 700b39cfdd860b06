package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/1ureka/beetv/internal/app"
)

var (
	_ commander = (*app.Peer)(nil)
	_ app.UI    = (*termUI)(nil)
)

// fakeCommander records every action the command loop asks for.
type fakeCommander struct {
	calls   []string
	chatErr error
	muted   bool
	off     bool
}

func (c *fakeCommander) Next() error         { c.calls = append(c.calls, "next"); return nil }
func (c *fakeCommander) End() error          { c.calls = append(c.calls, "end"); return nil }
func (c *fakeCommander) RetryCapture() error { c.calls = append(c.calls, "retry"); return nil }

func (c *fakeCommander) SendChat(text string) error {
	c.calls = append(c.calls, "chat:"+text)
	return c.chatErr
}

func (c *fakeCommander) ToggleAudio() (bool, error) {
	c.muted = !c.muted
	c.calls = append(c.calls, "mute")
	return c.muted, nil
}

func (c *fakeCommander) ToggleVideo() (bool, error) {
	c.off = !c.off
	c.calls = append(c.calls, "video")
	return c.off, nil
}

func TestReadCommands_Routing(t *testing.T) {
	input := strings.Join([]string{
		"/next", "  hello  ", "/mute", "/video", "/mute", "/retry", "/end", "", "/quit", "after",
	}, "\n")

	c := &fakeCommander{}
	quits := 0
	readCommands(strings.NewReader(input), c, func() { quits++ })

	want := []string{"next", "chat:hello", "mute", "video", "mute", "retry", "end"}
	if strings.Join(c.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls=%v, want %v", c.calls, want)
	}
	if quits != 1 {
		t.Fatalf("quit called %d times, want 1", quits)
	}
	if c.muted || !c.off {
		t.Fatalf("muted=%v off=%v after toggles", c.muted, c.off)
	}
}

func TestReadCommands_EndOfInputQuits(t *testing.T) {
	c := &fakeCommander{chatErr: app.ErrNotPaired}
	quits := 0
	readCommands(strings.NewReader("anyone?\n/unknown"), c, func() { quits++ })

	// Unknown slash lines are plain chat.
	want := []string{"chat:anyone?", "chat:/unknown"}
	if strings.Join(c.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls=%v, want %v", c.calls, want)
	}
	if quits != 1 {
		t.Fatalf("quit called %d times, want 1", quits)
	}
}

func TestReadCommands_ErrorsDoNotStopLoop(t *testing.T) {
	c := &fakeCommander{chatErr: errors.New("relay down")}
	readCommands(strings.NewReader("one\ntwo"), c, func() {})

	if len(c.calls) != 2 {
		t.Fatalf("calls=%v, want both lines sent", c.calls)
	}
}

func TestOnOff(t *testing.T) {
	if onOff(true) != "on" || onOff(false) != "off" {
		t.Fatalf("onOff mismatch")
	}
}
