// Package config holds the peer configuration gathered from a YAML file,
// command-line flags and interactive prompts.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// LinkKind selects the physical link between the two peers.
type LinkKind string

const (
	LinkLoopback LinkKind = "loopback" // in-process peer, for trying things out
	LinkSerial   LinkKind = "serial"
	LinkTCP      LinkKind = "tcp"
	LinkWS       LinkKind = "ws"
	LinkWebRTC   LinkKind = "webrtc"
)

// LinkKinds lists the accepted link kinds in prompt order.
var LinkKinds = []LinkKind{LinkSerial, LinkTCP, LinkWS, LinkWebRTC, LinkLoopback}

// Role represents which side opens the link (host listens, client dials).
// It says nothing about the lockstep role, which the handshake elects.
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

var (
	ErrInvalidLink   = errors.New("invalid link kind")
	ErrInvalidRole   = errors.New("invalid role")
	ErrMissingTarget = errors.New("missing link target")
	ErrInvalidValue  = errors.New("invalid value")
)

// Config stores every parameter a peer needs.
type Config struct {
	Link   LinkKind `yaml:"link"`
	Role   Role     `yaml:"role"`
	Device string   `yaml:"device"` // serial: device path
	Baud   int      `yaml:"baud"`   // serial: line speed
	Addr   string   `yaml:"addr"`   // tcp/ws/webrtc host: listen address; tcp client: dial address
	URL    string   `yaml:"url"`    // ws/webrtc client: ws://host:port/?pin=NNNN

	FPS          int `yaml:"fps"`
	PingInterval int `yaml:"ping_interval"`
	MaxFloor     int `yaml:"max_floor"`
	FadeTicks    int `yaml:"fade_ticks"`

	Debug   bool   `yaml:"debug"`
	Metrics string `yaml:"metrics"` // optional Prometheus listen address
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Role:         RoleHost,
		Baud:         115200,
		Addr:         ":7777",
		FPS:          60,
		PingInterval: 30,
		MaxFloor:     10,
		FadeTicks:    60,
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration describes a usable link.
func (c *Config) Validate() error {
	var errs []error

	switch c.Link {
	case LinkLoopback, LinkSerial, LinkTCP, LinkWS, LinkWebRTC:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLink, c.Link))
	}

	if c.Role != RoleHost && c.Role != RoleClient {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidRole, c.Role))
	}

	switch {
	case c.Link == LinkSerial && c.Device == "":
		errs = append(errs, fmt.Errorf("%w: serial link needs a device", ErrMissingTarget))
	case c.Link == LinkSerial && c.Baud <= 0:
		errs = append(errs, fmt.Errorf("%w: baud %d", ErrInvalidValue, c.Baud))
	case (c.Link == LinkTCP || c.Role == RoleHost) && c.NeedsNetwork() && c.Addr == "":
		errs = append(errs, fmt.Errorf("%w: %s %s needs an address", ErrMissingTarget, c.Link, c.Role))
	case (c.Link == LinkWS || c.Link == LinkWebRTC) && c.Role == RoleClient && c.URL == "":
		errs = append(errs, fmt.Errorf("%w: %s client needs a URL", ErrMissingTarget, c.Link))
	}

	for name, v := range map[string]int{
		"fps":           c.FPS,
		"ping_interval": c.PingInterval,
		"max_floor":     c.MaxFloor,
		"fade_ticks":    c.FadeTicks,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidValue, name, v))
		}
	}

	return errors.Join(errs...)
}

// NeedsNetwork reports whether the link goes over IP.
func (c *Config) NeedsNetwork() bool {
	return c.Link == LinkTCP || c.Link == LinkWS || c.Link == LinkWebRTC
}
