package logger

import (
	"fmt"
	"strings"
)

// ProgressBar draws a single-line progress bar on the console
type ProgressBar struct {
	total   int
	current int
	width   int
	message string
	drawn   int // last percentage drawn, -1 before the first draw
}

// NewProgressBar creates a new progress bar
func NewProgressBar(total int, message string) *ProgressBar {
	return &ProgressBar{
		total:   max(total, 1),
		width:   40,
		message: message,
		drawn:   -1,
	}
}

// Update sets the current position
func (p *ProgressBar) Update(current int) {
	p.current = min(max(current, 0), p.total)
	p.draw()
}

// Increment advances the bar by one
func (p *ProgressBar) Increment() {
	p.Update(p.current + 1)
}

// Finish fills the bar and ends the line
func (p *ProgressBar) Finish() {
	p.Update(p.total)
	w, _ := console()
	_, _ = fmt.Fprintln(w)
}

// Percent is the completed fraction in [0, 1]
func (p *ProgressBar) Percent() float64 {
	return float64(p.current) / float64(p.total)
}

func (p *ProgressBar) draw() {
	percent := p.Percent()
	pct := int(percent * 100)
	if pct == p.drawn {
		return
	}
	p.drawn = pct

	filled := int(percent * float64(p.width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)

	w, colored := console()
	if colored {
		_, _ = fmt.Fprintf(w, "\r%s: %s%s%s %3d%%", p.message, colorGreen, bar, colorReset, pct)
		return
	}
	_, _ = fmt.Fprintf(w, "\r%s: [%s] %3d%%", p.message, bar, pct)
}
