package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"

	"github.com/1ureka/duel/internal/arena"
	"github.com/1ureka/duel/internal/config"
	"github.com/1ureka/duel/internal/input"
	"github.com/1ureka/duel/internal/link"
	"github.com/1ureka/duel/internal/protocol"
	"github.com/1ureka/duel/internal/session"
	"github.com/1ureka/duel/internal/transport"
	"github.com/1ureka/duel/internal/util"
)

var errLinkLost = errors.New("link to the other player lost")

// redrawEvery is how many frames pass between two status redraws.
const redrawEvery = 4

// run opens the link and plays one session on it.
func run(ctx context.Context, cfg config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	var l link.Link
	if cfg.Link == config.LinkLoopback {
		local, remote := link.Pipe()
		l = local
		g.Go(func() error { return runBot(ctx, remote, cfg) })
	} else {
		var err error
		if l, err = openLink(ctx, cfg); err != nil {
			cancel()
			return errors.Join(err, g.Wait())
		}
	}

	ch := transport.New(ctx, l)
	defer ch.Close()

	if cfg.Metrics != "" {
		g.Go(func() error { return util.ServeMetrics(ctx, cfg.Metrics) })
	}
	if util.DebugEnabled() {
		util.StartStatsReporter(ctx)
	}

	var in session.InputSource = session.InputFunc(func() byte { return 0 })
	var quit <-chan struct{}
	if kb, err := input.OpenKeyboard(os.Stdin); err != nil {
		util.LogWarning("keyboard unavailable, playing idle: %v", err)
	} else {
		defer kb.Close()
		in, quit = kb, kb.Quit()
	}

	g.Go(func() error {
		// stop the bot and the metrics server with the game
		defer cancel()
		return play(ctx, cfg, ch, in, quit)
	})

	err := g.Wait()

	if util.DebugEnabled() {
		sent, consumed := ch.Trace()
		st := ch.Stats()
		util.LogDebug("link stats: sent %d, received %d, dropped %d", st.Sent, st.Received, st.Dropped)
		util.LogDebug("last sent:     % x", sent)
		util.LogDebug("last consumed: % x", consumed)
	}
	return err
}

// play drives the local session at the configured frame rate until the game
// is over, the player quits or ctx ends.
func play(ctx context.Context, cfg config.Config, ch *transport.Channel, in session.InputSource, quit <-chan struct{}) error {
	world := arena.New()
	s := session.New(ch, world, in,
		session.WithPingInterval(cfg.PingInterval),
		session.WithMaxFloor(cfg.MaxFloor),
		session.WithFadeTicks(cfg.FadeTicks),
		session.WithLogger(util.Component("session")),
	)
	s.Start()

	area, err := pterm.DefaultArea.Start()
	if err != nil {
		return fmt.Errorf("failed to start display: %w", err)
	}
	defer area.Stop()

	ticker := time.NewTicker(time.Second / time.Duration(cfg.FPS))
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-quit:
			area.Update(status(s, world))
			return nil
		case <-ticker.C:
		}

		s.Tick()

		if frame%redrawEvery == 0 {
			area.Update(status(s, world))
		}

		switch {
		case s.Phase() == session.GameOver:
			area.Update(status(s, world))
			util.LogSuccess("game over on floor %d after %d ticks", s.Floor(), s.TickCount())
			return nil
		case s.Phase().Lockstep() && !ch.IsAvailableForWrite():
			return errLinkLost
		}
	}
}

// status renders the session state and the arena for the terminal.
func status(s *session.Session, w *arena.World) string {
	header := pterm.Sprintf("%s  %s",
		pterm.LightCyan("phase"), s.Phase().String())

	if s.Connecting() {
		return header + pterm.Sprintf("\n%s 0x%02x  %s %d\n",
			pterm.Gray("token"), byte(s.Token()),
			pterm.Gray("collisions"), s.Collisions())
	}

	local := w.Players[s.Role()]
	remote := w.Players[s.Role().Other()]

	var waiting string
	if s.Waiting() {
		waiting = pterm.Yellow("  waiting for peer")
	}

	return header + pterm.Sprintf("  %s %s  %s %d  %s %d%s\n%s\n%s %d  %s %d  %s %08x\n",
		pterm.LightCyan("you"), s.Role(),
		pterm.LightCyan("floor"), s.Floor(),
		pterm.LightCyan("tick"), s.TickCount(),
		waiting,
		w.Render(),
		pterm.Green("hp"), local.HP,
		pterm.Red("peer hp"), remote.HP,
		pterm.Gray("sum"), w.Checksum(),
	)
}

// runBot plays the other side of a loopback session with random inputs.
func runBot(ctx context.Context, l link.Link, cfg config.Config) error {
	ch := transport.New(ctx, l)
	defer ch.Close()

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	moves := []protocol.Input{
		protocol.InputUp, protocol.InputDown, protocol.InputLeft, protocol.InputRight,
		protocol.InputRight | protocol.InputA, 0,
	}
	var current protocol.Input
	var held int
	bot := session.New(ch, arena.New(), session.InputFunc(func() byte {
		if held == 0 {
			current, held = moves[rng.IntN(len(moves))], 10+rng.IntN(20)
		}
		held--
		return byte(current)
	}),
		session.WithPingInterval(cfg.PingInterval),
		session.WithMaxFloor(cfg.MaxFloor),
		session.WithFadeTicks(cfg.FadeTicks),
	)
	bot.Start()

	ticker := time.NewTicker(time.Second / time.Duration(cfg.FPS))
	defer ticker.Stop()

	for bot.Phase() != session.GameOver {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			bot.Tick()
		}
	}
	return nil
}
