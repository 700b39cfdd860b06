// Command beetv is the CLI entry point.
//
// `beetv serve` runs the matchmaking relay. `beetv join` connects to a relay
// as an anonymous participant and negotiates a direct WebRTC session with
// whoever it is paired with.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/beetv/internal/app"
	"github.com/1ureka/beetv/internal/config"
	"github.com/1ureka/beetv/internal/media"
	"github.com/1ureka/beetv/internal/negotiation"
	"github.com/1ureka/beetv/internal/signaling"
	"github.com/1ureka/beetv/internal/transport"
	"github.com/1ureka/beetv/internal/util"
)

var version = "dev"

var (
	flagServer string
	flagListen string
	flagSTUN   []string
	flagStats  time.Duration
	flagDebug  bool
	flagText   bool
)

var rootCmd = &cobra.Command{
	Use:           "beetv",
	Short:         "Anonymous one-to-one video and text chat over WebRTC",
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the matchmaking relay",
	Long: `Run the matchmaking relay. Participants connect over WebSocket, wait in
a queue per mode and are paired two at a time; the relay forwards their
negotiation messages and chat lines until one of them leaves.

Examples:
  beetv serve
  beetv serve --listen 127.0.0.1:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return signaling.NewServer().ListenAndServe(cmd.Context(), cfg.ListenAddr)
	},
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join the queue and chat with a stranger",
	Long: `Join the queue and chat with a stranger.

Type a line to chat. Commands:
  /next   leave the current stranger and find another
  /end    leave without looking for another
  /retry  ask for camera and microphone access again
  /mute   mute or unmute your microphone
  /video  turn your camera off or back on
  /quit   exit

Examples:
  beetv join --server wss://beetv.example.com
  beetv join --text`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runJoin(cmd.Context(), cfg)
	},
}

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&flagStats, "stats", 0, "Negotiation stats reporting period (0 keeps the default)")

	serveCmd.Flags().StringVar(&flagListen, "listen", "", "Address the relay listens on")

	joinCmd.Flags().StringVar(&flagServer, "server", "", "Relay WebSocket URL")
	joinCmd.Flags().StringSliceVar(&flagSTUN, "stun", nil, "STUN server URLs")
	joinCmd.Flags().BoolVar(&flagText, "text", false, "Text-only mode, no camera or microphone")

	rootCmd.AddCommand(serveCmd, joinCmd)

	pterm.Info.Println(fmt.Sprintf("beetv — v%s", version))
	pterm.Println()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		ServerURL:     flagServer,
		ListenAddr:    flagListen,
		STUNServers:   flagSTUN,
		StatsInterval: flagStats,
		Debug:         flagDebug,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		util.EnableDebug()
	}
	return cfg, nil
}

// runJoin connects to the relay and serves one participant until the user
// quits or the relay goes away.
func runJoin(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	api, err := transport.NewAPI(transport.Options{ICEServers: cfg.ICEServers()})
	if err != nil {
		return err
	}

	client, err := signaling.Dial(ctx, cfg.ServerURL)
	if err != nil {
		return err
	}
	defer client.Close()
	util.LogSuccess("connected to relay %s", cfg.ServerURL)

	mode := signaling.ModeVideo
	if flagText {
		mode = signaling.ModeText
	}

	peer, err := app.NewPeer(app.Options{
		Mode:     mode,
		Relay:    client,
		Capturer: media.NewSyntheticCapturer("beetv"),
		NewConn: func(ctx context.Context) (negotiation.Conn, error) {
			return api.NewTransport(ctx)
		},
		UI: newTermUI(),
	})
	if err != nil {
		return err
	}
	defer peer.End()

	util.StartStatsReporter(ctx, cfg.StatsInterval)

	if err := peer.Start(ctx); err != nil {
		return err
	}
	go readCommands(os.Stdin, peer, cancel)

	err = client.Dispatch(ctx, peer)
	if errors.Is(err, context.Canceled) {
		util.LogInfo("bye")
		return nil
	}
	return fmt.Errorf("relay connection lost: %w", err)
}

// commander is what the command loop drives. *app.Peer implements it.
type commander interface {
	Next() error
	End() error
	RetryCapture() error
	SendChat(text string) error
	ToggleAudio() (bool, error)
	ToggleVideo() (bool, error)
}

// readCommands turns input lines into peer actions. Anything that is not a
// command is sent as chat. quit runs on /quit or at end of input.
func readCommands(r io.Reader, peer commander, quit func()) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		switch line {
		case "/next":
			err = peer.Next()
		case "/end":
			err = peer.End()
		case "/retry":
			err = peer.RetryCapture()
		case "/mute":
			var muted bool
			if muted, err = peer.ToggleAudio(); err == nil {
				util.LogInfo("microphone %s", onOff(!muted))
			}
		case "/video":
			var off bool
			if off, err = peer.ToggleVideo(); err == nil {
				util.LogInfo("camera %s", onOff(!off))
			}
		case "/quit":
			quit()
			return
		default:
			err = peer.SendChat(line)
			if errors.Is(err, app.ErrNotPaired) {
				util.LogWarning("nobody to talk to yet, type /next to find someone")
				continue
			}
		}
		if err != nil {
			util.LogError("%s: %v", line, err)
		}
	}
	quit()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
