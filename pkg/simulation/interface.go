package simulation

import (
	"context"
)

// Simulation is a runnable scenario registered with the CLI
type Simulation interface {
	// Name returns the name the simulation is registered under
	Name() string

	// Description returns a brief description of what the simulation does
	Description() string

	// Configure sets up the simulation with the provided parameters
	Configure(params map[string]interface{}) error

	// Run executes the simulation until it completes or ctx is cancelled
	Run(ctx context.Context) error

	// Stop asks a running simulation to wind down early
	Stop() error
}
