package main

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/pterm/pterm"

	"github.com/1ureka/beetv/internal/media"
	"github.com/1ureka/beetv/internal/negotiation"
	"github.com/1ureka/beetv/internal/signaling"
	"github.com/1ureka/beetv/internal/util"
)

// termUI renders participant events on the terminal. Remote media is only
// drained; there is no video surface.
type termUI struct{}

func newTermUI() *termUI { return &termUI{} }

func (termUI) Waiting() {
	pterm.Info.Println("waiting for a stranger...")
}

func (termUI) Paired(room, peer string, mode signaling.Mode) {
	fmt.Print("\a")
	pterm.Success.Printfln("you're now chatting with %s (%s)", pterm.Cyan(peer), mode)
	util.LogDebug("room %s", room)
}

func (termUI) Ended(room, reason string) {
	switch reason {
	case signaling.ReasonPeerDisconnected:
		pterm.Warning.Println("stranger disconnected, type /next to find someone else")
	default:
		pterm.Warning.Println("stranger left the chat, type /next to find someone else")
	}
}

func (termUI) OnLocalStreamReady(s *media.Stream) {
	util.LogInfo("camera and microphone ready (%s)", s.ID())
}

func (termUI) OnRemoteStreamReady(track *webrtc.TrackRemote) {
	util.LogInfo("receiving %s from stranger", track.Kind())
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := track.Read(buf); err != nil {
				return
			}
		}
	}()
}

func (termUI) OnConnectionStateChanged(state negotiation.ConnectionState) {
	switch state {
	case negotiation.StateConnected:
		pterm.Success.Println("direct connection established")
	case negotiation.StateFailed:
		pterm.Error.Println("direct connection failed, type /next to try someone else")
	default:
		util.LogDebug("connection %s", state)
	}
}

func (termUI) OnPermissionDenied(err error) {
	var perr *media.PermissionError
	if errors.As(err, &perr) {
		pterm.Warning.Printfln("no access to %s, type /retry once it is allowed", perr.Device)
		return
	}
	pterm.Warning.Printfln("%v, type /retry once it is allowed", err)
}

func (termUI) ChatOpen(peer string) {
	util.LogDebug("direct chat with %s open", peer)
	pterm.Success.Printfln("chatting directly with %s", pterm.Cyan(peer))
}

func (termUI) Chat(sender, text string) {
	pterm.Printfln("%s: %s", pterm.Cyan(sender), text)
}

func (termUI) Error(msg string) {
	util.LogError("%s", msg)
}
