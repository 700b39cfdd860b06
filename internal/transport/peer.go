package transport

import (
	"fmt"

	piontransport "github.com/pion/transport/v4"
	"github.com/pion/webrtc/v4"
)

const (
	chatLabel     = "chat"
	chatChannelID = 0
)

// Options configures the pion API shared by every Transport of a process.
type Options struct {
	ICEServers []webrtc.ICEServer

	// Net replaces the OS network stack, e.g. with a vnet in tests.
	Net piontransport.Net
}

// API creates Transports with a fixed configuration.
type API struct {
	api    *webrtc.API
	config webrtc.Configuration
}

// NewAPI builds a pion API with the default audio/video codecs registered and
// pion logging routed to the application logger.
func NewAPI(opts Options) (*API, error) {
	se := webrtc.SettingEngine{LoggerFactory: loggerFactory{}}
	if opts.Net != nil {
		se.SetNet(opts.Net)
	}

	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	return &API{
		api: webrtc.NewAPI(
			webrtc.WithSettingEngine(se),
			webrtc.WithMediaEngine(me),
		),
		config: webrtc.Configuration{ICEServers: opts.ICEServers},
	}, nil
}

func (a *API) newPeerConnection() (*webrtc.PeerConnection, error) {
	return a.api.NewPeerConnection(a.config)
}

// newChatChannel creates the pre-negotiated chat DataChannel. Negotiated mode
// (ID 0) lets both sides create it independently, so it survives whichever
// side ends up offering after a collision. Chat needs ordering.
func newChatChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := true
	negotiated := true
	id := uint16(chatChannelID)

	return pc.CreateDataChannel(chatLabel, &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	})
}
