package controllers

import (
	"math"

	"github.com/picogrid/killweb-simulations/cmd/killweb/assign"
	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
	"github.com/picogrid/killweb-simulations/cmd/killweb/track"
	"github.com/picogrid/killweb-simulations/pkg/logger"
)

// C2NodeConfig holds the tunables of a command-and-control node
type C2NodeConfig struct {
	TargetCapacity      int
	AssignmentThreshold float64
	TrackCapacity       int
	AgeOut              float64 // seconds
	MinReportDelay      float64 // seconds
	MeanReportDelay     float64 // seconds
	AssignmentPeriod    float64 // seconds
}

// C2Node fuses tracks from its sensors and subordinates and assigns targets
// to the shooters under it
type C2Node struct {
	ID     core.Handle
	Name   string
	Ledger *track.Ledger
	Engine *assign.Engine

	cfg      C2NodeConfig
	rng      core.Rand
	observer Observer
	superior *C2Node
	log      logger.Logger

	tracking  *trackTick
	assigning *assignTick
}

// NewC2Node creates a node for the arena entity id
func NewC2Node(arena *core.Arena, id core.Handle, cfg C2NodeConfig, rng core.Rand, clock func() float64, observer Observer) *C2Node {
	if observer == nil {
		observer = NopObserver{}
	}
	n := &C2Node{
		ID:       id,
		Name:     arena.Name(id),
		Ledger:   track.NewLedger(cfg.TrackCapacity, cfg.AgeOut),
		cfg:      cfg,
		rng:      rng,
		observer: observer,
		log:      logger.WithPrefix("c2/" + arena.Name(id)),
	}
	n.Engine = assign.NewEngine(assign.Config{
		Handle:    id,
		Capacity:  cfg.TargetCapacity,
		Threshold: cfg.AssignmentThreshold,
		Tracks:    n.Ledger,
		Alive:     arena.Alive,
		Clock:     clock,
		OnEvent:   observer.Assignment,
	})
	n.tracking = &trackTick{node: n}
	n.assigning = &assignTick{node: n}
	return n
}

// AttachTo makes superior this node's commander: tracks forward to its
// ledger and the node becomes one of its shooters
func (n *C2Node) AttachTo(superior *C2Node) {
	n.superior = superior
	n.Engine.SetSuperior(superior.Engine)
	superior.Engine.AddSubordinate(n.Engine)
}

// Superior returns the commanding node, nil at the top of the tree
func (n *C2Node) Superior() *C2Node { return n.superior }

// Behaviors returns the node's two scheduled callbacks
func (n *C2Node) Behaviors() []core.Behavior {
	return []core.Behavior{n.tracking, n.assigning}
}

// upstream is the ledger tracks are forwarded to. It must be a nil
// interface, not a typed nil, at the top of the tree.
func (n *C2Node) upstream() track.Reporter {
	if n.superior == nil {
		return nil
	}
	return n.superior.Ledger
}

// TrackTick ages the ledger and forwards it upward
func (n *C2Node) TrackTick(now float64) {
	for _, t := range n.Ledger.Age(now) {
		n.log.Debugf("t=%.1f track %d aged out", now, t)
		n.observer.TrackDropped(now, n.ID, t)
	}
	n.Ledger.Forward(n.upstream(), now)
}

// AssignTick runs the node's assignment pass
func (n *C2Node) AssignTick(now float64) {
	n.Engine.Rebalance(now)
}

// trackTick fires on a shifted-exponential schedule
type trackTick struct{ node *C2Node }

func (t *trackTick) NextDue(now float64) float64 {
	c := t.node.cfg
	return core.ShiftedExponential(now, c.MinReportDelay, c.MeanReportDelay, t.node.rng)
}

func (t *trackTick) Perform(now float64) { t.node.TrackTick(now) }

// assignTick fires on a fixed period
type assignTick struct{ node *C2Node }

func (a *assignTick) NextDue(now float64) float64 {
	p := a.node.cfg.AssignmentPeriod
	if p <= 0 {
		return math.Inf(1)
	}
	return now + p
}

func (a *assignTick) Perform(now float64) { a.node.AssignTick(now) }
