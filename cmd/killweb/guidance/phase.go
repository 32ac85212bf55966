package guidance

import (
	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
)

// TerminalFraction is the share of lethal range, measured to the target,
// inside which an interceptor counts as in terminal phase
const TerminalFraction = 0.15

// PhaseCounter tracks how many interceptors of one type are in terminal
// phase. While any are, every interceptor of the type ticks at the terminal
// period. One counter exists per interceptor type per run.
type PhaseCounter struct {
	nominal  float64
	terminal float64
	members  map[core.Handle]struct{}
	onChange func(now, period float64)
	changes  int
}

// NewPhaseCounter creates a counter. A non-positive terminal period falls
// back to the nominal one.
func NewPhaseCounter(nominal, terminal float64) *PhaseCounter {
	if terminal <= 0 {
		terminal = nominal
	}
	return &PhaseCounter{
		nominal:  nominal,
		terminal: terminal,
		members:  make(map[core.Handle]struct{}),
	}
}

// OnChange registers a callback for period changes
func (p *PhaseCounter) OnChange(fn func(now, period float64)) { p.onChange = fn }

// Enter registers id as in terminal phase
func (p *PhaseCounter) Enter(id core.Handle, now float64) {
	if _, ok := p.members[id]; ok {
		return
	}
	p.members[id] = struct{}{}
	if len(p.members) == 1 {
		p.changed(now)
	}
}

// Leave removes id from terminal phase
func (p *PhaseCounter) Leave(id core.Handle, now float64) {
	if _, ok := p.members[id]; !ok {
		return
	}
	delete(p.members, id)
	if len(p.members) == 0 {
		p.changed(now)
	}
}

func (p *PhaseCounter) changed(now float64) {
	p.changes++
	if p.onChange != nil {
		p.onChange(now, p.Period())
	}
}

// Count is the number of interceptors in terminal phase
func (p *PhaseCounter) Count() int { return len(p.members) }

// Terminal reports whether the fast tick is in force
func (p *PhaseCounter) Terminal() bool { return len(p.members) > 0 }

// Period is the current update period in seconds
func (p *PhaseCounter) Period() float64 {
	if p.Terminal() {
		return p.terminal
	}
	return p.nominal
}

// Changes is the number of period switches so far
func (p *PhaseCounter) Changes() int { return p.changes }
