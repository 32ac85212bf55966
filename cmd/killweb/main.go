package main

import (
	"fmt"
	"os"

	// Import to register the simulation
	_ "github.com/picogrid/killweb-simulations/cmd/killweb/simulation"
)

func main() {
	fmt.Println("Kill-web simulation registered. Use 'killweb-sim run' to execute.")
	os.Exit(0)
}
