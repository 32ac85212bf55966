package cmd

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/picogrid/killweb-simulations/pkg/config"
	"github.com/picogrid/killweb-simulations/pkg/logger"
	"github.com/picogrid/killweb-simulations/pkg/simulation"
	"github.com/picogrid/killweb-simulations/pkg/utils"

	// Import simulations to register them
	_ "github.com/picogrid/killweb-simulations/cmd/killweb/simulation"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long: `Run a simulation interactively or with specified parameters.

Parameters are taken from a saved profile, a parameters file or a scenario
file when one is given; otherwise they are prompted for.`,
	RunE: runSimulation,
}

func init() {
	runCmd.Flags().StringP("simulation", "s", "", "simulation name to run")
	runCmd.Flags().StringP("params", "p", "", "parameters file (YAML)")
	runCmd.Flags().String("scenario", "", "scenario configuration file")
	runCmd.Flags().String("profile", "", "saved profile to run")
	runCmd.Flags().Int("seed", -1, "random seed override")
	runCmd.Flags().Duration("duration", 0, "simulated time limit override")
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	profile, err := selectProfile(cmd)
	if err != nil {
		return err
	}

	simName, err := selectSimulation(cmd, profile)
	if err != nil {
		return fmt.Errorf("failed to select simulation: %w", err)
	}

	sim, err := simulation.DefaultRegistry.Get(simName)
	if err != nil {
		return fmt.Errorf("failed to get simulation: %w", err)
	}

	params, err := collectParameters(cmd, simName, profile)
	if err != nil {
		return fmt.Errorf("failed to get parameters: %w", err)
	}
	applyFlagOverrides(cmd, params)

	if err := sim.Configure(params); err != nil {
		return fmt.Errorf("failed to configure simulation: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		logger.Warn("\nReceived interrupt signal, stopping simulation...")
		if err := sim.Stop(); err != nil {
			logger.Errorf("Failed to stop simulation: %v", err)
		}
		cancel()
	}()

	logger.LogSection(fmt.Sprintf("Starting %s", sim.Name()))
	if err := sim.Run(ctx); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	logger.Success("Simulation completed successfully")
	return nil
}

// selectProfile returns the profile named by --profile, if any
func selectProfile(cmd *cobra.Command) (*config.Profile, error) {
	name, _ := cmd.Flags().GetString("profile")
	if name == "" {
		return nil, nil
	}

	profiles, err := config.LoadProfiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	p, ok := profiles.Find(name)
	if !ok {
		return nil, fmt.Errorf("profile %s not found", name)
	}
	return &p, nil
}

func selectSimulation(cmd *cobra.Command, profile *config.Profile) (string, error) {
	simName, _ := cmd.Flags().GetString("simulation")
	if simName != "" {
		return simName, nil
	}
	if profile != nil && profile.Simulation != "" {
		return profile.Simulation, nil
	}

	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return "", err
	}
	if len(simInfos) == 0 {
		return "", fmt.Errorf("no simulations found")
	}
	if len(simInfos) == 1 {
		return simInfos[0].Config.Name, nil
	}

	options := make([]string, len(simInfos))
	descriptions := make(map[string]string)
	for i, info := range simInfos {
		options[i] = info.Config.Name
		descriptions[info.Config.Name] = info.Config.Description
	}

	var selected string
	prompt := &survey.Select{
		Message: "Select simulation:",
		Options: options,
		Description: func(value string, index int) string {
			return descriptions[value]
		},
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	return selected, nil
}

// collectParameters builds the parameter set for a run. A profile, a
// parameters file or a scenario file replaces the interactive prompts, since
// prompted defaults would otherwise override the scenario's own values.
func collectParameters(cmd *cobra.Command, simName string, profile *config.Profile) (map[string]interface{}, error) {
	params := make(map[string]interface{})
	noPrompt := false

	if profile != nil {
		maps.Copy(params, profile.Params())
		noPrompt = true
	}

	if path, _ := cmd.Flags().GetString("params"); path != "" {
		fromFile, err := loadParamsFile(path)
		if err != nil {
			return nil, err
		}
		maps.Copy(params, fromFile)
		noPrompt = true
	}

	if scenario, _ := cmd.Flags().GetString("scenario"); scenario != "" {
		params["scenario"] = scenario
		noPrompt = true
	}

	if dir := viper.GetString("reports_dir"); dir != "" {
		if _, ok := params["aar_output_path"]; !ok {
			params["aar_output_path"] = dir
		}
	}

	if noPrompt {
		return params, nil
	}

	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return nil, fmt.Errorf("failed to discover simulations: %w", err)
	}
	info, err := utils.FindSimulation(simInfos, simName)
	if err != nil {
		return nil, err
	}
	if err := info.Config.Validate(); err != nil {
		return nil, err
	}

	prompted, err := utils.PromptForParameters(info.Config.Parameters)
	if err != nil {
		return nil, err
	}
	maps.Copy(params, prompted)
	return params, nil
}

func loadParamsFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters file: %w", err)
	}
	params := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("failed to parse parameters file: %w", err)
	}
	return params, nil
}

func applyFlagOverrides(cmd *cobra.Command, params map[string]interface{}) {
	if cmd.Flags().Changed("seed") {
		seed, _ := cmd.Flags().GetInt("seed")
		params["seed"] = seed
	}
	if cmd.Flags().Changed("duration") {
		d, _ := cmd.Flags().GetDuration("duration")
		params["duration"] = d
	}
	if cmd.Flags().Changed("log-level") {
		params["log_level"] = logLevel
	}
}
