package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"remoteview/native/internal/config"
	"remoteview/native/internal/domain"
	"remoteview/native/internal/logx"
	"remoteview/native/internal/resolve"
	"remoteview/native/internal/session"
	sigclient "remoteview/native/internal/signal"
	"remoteview/native/internal/viewer"
	"remoteview/native/internal/webrtc"
)

const helpText = `remoteview - View a remote desktop session via WebRTC

Usage:
  remoteview [options] [session-link]

The session link is the URL (or just its path) handed out when the session
was created. The raw H264 stream is written to stdout. Pipe to ffplay or
ffmpeg for playback or recording. Logs go to stderr.

Environment Variables:
  REMOTEVIEW_API_BASE_URL     Signaling proxy base URL (default https://api.remoteview.local)
  REMOTEVIEW_SESSION_URL      Session link used when none is given as argument
  REMOTEVIEW_STUN_URI         STUN server (default stun:stun.l.google.com:19302)
  REMOTEVIEW_TURN_URI         TURN server, used only with a password
  REMOTEVIEW_TURN_USERNAME    TURN username
  REMOTEVIEW_TURN_PASSWORD    TURN password
  REMOTEVIEW_DISPLAY_WIDTH    Requested width (default 1280)
  REMOTEVIEW_DISPLAY_HEIGHT   Requested height (default 720)
  REMOTEVIEW_DISPLAY_FPS      Requested frame rate (default 60)
  REMOTEVIEW_LOG_LEVEL        trace, debug, info, warn, error or disabled
  REMOTEVIEW_STATS_INTERVAL   Stream statistics interval, 0 disables (default 5s)

Examples:
  # Live playback
  remoteview https://view.example.com/eyJ2IjoxLCJ...sig | ffplay -f h264 -

  # Record to MP4
  remoteview /eyJ2IjoxLCJ...sig | ffmpeg -f h264 -i - -c copy output.mp4

Options:
  -h, --help  Show this help message

Exit status is 2 when the session link cannot be used and 1 when the
connection fails.
`

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "remoteview: %v\n", err)
		return 2
	}

	lf := logx.Stderr(cfg.LogLevel)
	log := lf.NewLogger("main")

	link := cfg.SessionURL
	if len(args) > 0 {
		link = args[0]
	}
	path, err := session.PathFromLink(link)
	if err != nil {
		log.Errorf("%v", err)
		return 2
	}

	token, err := session.NewDecoder(lf).Decode(path)
	if err != nil {
		log.Error(linkFailure(err))
		return 2
	}
	log.Infof("session %s on %s", token.SessionID, token.VPNIP)

	stream, err := resolve.Stream(cfg.Connection(), cfg.Display(), token)
	if err != nil {
		log.Errorf("resolve: %v", err)
		return 2
	}
	log.Infof("signaling via %s, media at %s", stream.Signaling.URL(), stream.Media)

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	peer, err := webrtc.NewPeer(webrtc.PeerConfig{
		SessionID:     stream.SessionID,
		ICEServers:    stream.ICEServers,
		Display:       stream.Display,
		LoggerFactory: lf,
	})
	if err != nil {
		log.Errorf("create peer: %v", err)
		return 1
	}
	defer peer.Close()

	if err := peer.AddTransceivers(); err != nil {
		log.Errorf("add transceivers: %v", err)
		return 1
	}

	v := viewer.New(peer, stream, cancel, lf)
	sc := sigclient.NewClient(stream, v, lf)
	v.SetSignaler(sc)
	defer sc.Close()

	peer.SetOnTrack(os.Stdout)
	peer.SetOnICECandidate(sc.SendICECandidate)
	peer.SetOnStateChange(v.HandleLinkState)

	if err := v.Start(ctx); err != nil {
		return 1
	}
	go v.RunStats(ctx, cfg.StatsInterval)

	<-ctx.Done()
	log.Info("shutting down")

	switch err := v.Err(); {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrTerminated):
		log.Infof("%v", err)
		return 0
	default:
		log.Errorf("%v", err)
		return 1
	}
}

// linkFailure describes why a session link cannot be used.
func linkFailure(err error) string {
	switch {
	case errors.Is(err, domain.ErrExpired):
		return "session link has expired, request a new one"
	case errors.Is(err, domain.ErrMissingToken):
		return "no session link given, see --help"
	default:
		return fmt.Sprintf("invalid session link: %v", err)
	}
}
