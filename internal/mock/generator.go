// Package mock drives synthetic participants into a session hub so the
// client has remote streams to render without other real peers.
package mock

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/videoroom/room/internal/sdk"
)

// Hub is the part of the session hub the generator needs.
type Hub interface {
	AddStream(sdk.Stream)
	RemoveStream(id, reason string)
}

var participantNames = []string{
	"ada", "grace", "linus", "margaret", "ken", "barbara", "dennis", "radia",
}

type participant struct {
	stream  sdk.Stream
	leaveAt int // tick at which the participant leaves
}

type Generator struct {
	hub      Hub
	log      *slog.Logger
	max      int
	interval time.Duration
	rng      *rand.Rand

	tick    int
	active  []*participant
	nextIdx int
}

func NewGenerator(hub Hub, max int, interval time.Duration, log *slog.Logger) *Generator {
	if max < 1 {
		max = 1
	}
	return &Generator{
		hub:      hub,
		log:      log.With("component", "mock"),
		max:      max,
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start runs the generator until ctx is cancelled.
func (g *Generator) Start(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				g.leaveAll()
				return
			case <-ticker.C:
				g.Step()
			}
		}
	}()
}

// Step advances the simulation by one tick: participants whose time is up
// leave, and a new one joins while there is room.
func (g *Generator) Step() {
	g.tick++

	kept := g.active[:0]
	for _, p := range g.active {
		if g.tick >= p.leaveAt {
			g.hub.RemoveStream(p.stream.ID, "clientDisconnected")
			g.log.Debug("participant left", "name", p.stream.Name)
			continue
		}
		kept = append(kept, p)
	}
	g.active = kept

	if len(g.active) < g.max {
		g.join()
	}
}

func (g *Generator) join() {
	name := participantNames[g.nextIdx%len(participantNames)]
	g.nextIdx++
	p := &participant{
		stream: sdk.Stream{
			ID:           fmt.Sprintf("mock-stream-%d", g.nextIdx),
			ConnectionID: fmt.Sprintf("mock-conn-%d", g.nextIdx),
			Name:         name,
			HasVideo:     g.rng.Intn(5) != 0,
			HasAudio:     true,
			CreatedAt:    time.Now(),
		},
		leaveAt: g.tick + 3 + g.rng.Intn(8),
	}
	g.active = append(g.active, p)
	g.hub.AddStream(p.stream)
	g.log.Debug("participant joined", "name", name)
}

func (g *Generator) leaveAll() {
	for _, p := range g.active {
		g.hub.RemoveStream(p.stream.ID, "sessionEnded")
	}
	g.active = nil
}

// Active returns the number of synthetic participants in the session.
func (g *Generator) Active() int {
	return len(g.active)
}
