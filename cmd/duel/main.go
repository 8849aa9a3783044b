// Command duel is the CLI peer of the lockstep duel.
//
// Two players, one byte per tick each way: this peer exchanges keyboard
// inputs with the other peer in lockstep and both run the same arena
// simulation. The link can be a serial port, raw TCP, a WebSocket, or a
// WebRTC DataChannel brokered over a WebSocket.
//
// It can be launched interactively (no -link flag) or non-interactively via
// flags or a YAML config file (-config).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/duel/internal/config"
	"github.com/1ureka/duel/internal/link"
	"github.com/1ureka/duel/internal/signaling"
	"github.com/1ureka/duel/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	configPath := flag.String("config", "", "YAML config file")
	linkKind := flag.String("link", "", "Link: serial, tcp, ws, webrtc or loopback")
	role := flag.String("role", "", "Role: host (listen) or client (dial)")
	device := flag.String("device", "", "Serial device (serial link)")
	baud := flag.Int("baud", 0, "Serial line speed (serial link)")
	addr := flag.String("addr", "", "Listen address (host) or dial address (tcp client)")
	wsURL := flag.String("url", "", "Host URL including the PIN (ws/webrtc client)")
	fps := flag.Int("fps", 0, "Frames per second")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	metrics := flag.String("metrics", "", "Serve Prometheus metrics on this address")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags that were given override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "link":
			cfg.Link = config.LinkKind(*linkKind)
		case "role":
			cfg.Role = config.Role(*role)
		case "device":
			cfg.Device = *device
		case "baud":
			cfg.Baud = *baud
		case "addr":
			cfg.Addr = *addr
		case "url":
			cfg.URL = *wsURL
		case "fps":
			cfg.FPS = *fps
		case "debug":
			cfg.Debug = *debugMode
		case "metrics":
			cfg.Metrics = *metrics
		}
	})

	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Duel v%s", version))
	pterm.Println()

	if cfg.Link == "" {
		// No link configured → interactive mode.
		askConfig(&cfg)
	}

	if cfg.URL != "" {
		normalized, err := normalizeWSURL(cfg.URL)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		cfg.URL = normalized
	}

	if err := cfg.Validate(); err != nil {
		util.LogError("invalid configuration:\n%v", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		util.LogError("%v", err)
		os.Exit(1)
	}

	util.LogInfo("session closed")
}

// openLink establishes the physical link described by cfg. Loopback is
// handled by run.
func openLink(ctx context.Context, cfg config.Config) (link.Link, error) {
	switch cfg.Link {
	case config.LinkSerial:
		return link.OpenSerial(cfg.Device, cfg.Baud)

	case config.LinkTCP:
		if cfg.Role == config.RoleHost {
			return link.ListenTCP(ctx, cfg.Addr)
		}
		return link.DialTCP(ctx, cfg.Addr)

	case config.LinkWS:
		if cfg.Role == config.RoleHost {
			srv, err := listenSignaling(cfg.Addr)
			if err != nil {
				return nil, err
			}
			return signaling.AcceptWebSocket(ctx, srv)
		}
		return signaling.DialWebSocket(ctx, cfg.URL)

	case config.LinkWebRTC:
		if cfg.Role == config.RoleHost {
			srv, err := listenSignaling(cfg.Addr)
			if err != nil {
				return nil, err
			}
			return signaling.EstablishAsHost(ctx, srv)
		}
		return signaling.EstablishAsClient(ctx, cfg.URL)
	}

	return nil, fmt.Errorf("%w: %q", config.ErrInvalidLink, cfg.Link)
}

func listenSignaling(addr string) (*signaling.Server, error) {
	srv, err := signaling.Listen(addr)
	if err != nil {
		return nil, err
	}
	srv.PrintBanner()
	util.LogInfo("waiting for the other player ...")
	return srv, nil
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// normalizeWSURL validates a host URL and fills in the scheme and path. The
// PIN query is kept.
func normalizeWSURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid WebSocket URL scheme: %s", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	if u.Query().Get("pin") == "" {
		return "", fmt.Errorf("WebSocket URL has no pin: %s", raw)
	}
	return u.String(), nil
}

// askConfig fills cfg through interactive prompts.
func askConfig(cfg *config.Config) {
	options := make([]string, len(config.LinkKinds))
	for i, k := range config.LinkKinds {
		options[i] = string(k)
	}
	kind, _ := pterm.DefaultInteractiveSelect.
		WithOptions(options).
		WithDefaultText("Select the link to the other player").
		Show()
	cfg.Link = config.LinkKind(kind)
	pterm.Println()

	switch cfg.Link {
	case config.LinkLoopback:
		return

	case config.LinkSerial:
		cfg.Device = askText("Serial device", "/dev/ttyACM0")
		return
	}

	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Host   - Wait for the other player", "Client - Join the other player"}).
		WithDefaultText("Select your role").
		Show()
	pterm.Println()

	if strings.HasPrefix(role, "Host") {
		cfg.Role = config.RoleHost
		cfg.Addr = askText("Listen address", cfg.Addr)
		return
	}

	cfg.Role = config.RoleClient
	if cfg.Link == config.LinkTCP {
		cfg.Addr = askText("Host address", "127.0.0.1:7777")
		return
	}
	for {
		raw := askText("Host URL (e.g. ws://192.168.1.20:7777/ws?pin=1234)", "")
		if u, err := normalizeWSURL(raw); err == nil {
			cfg.URL = u
			return
		}
		util.LogWarning("invalid input: please enter a URL including the PIN")
		pterm.Println()
	}
}

func askText(prompt, def string) string {
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]", prompt, def)
	}
	raw, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText(prompt).
		Show()
	pterm.Println()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	return raw
}
