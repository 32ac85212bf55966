package cmd

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/picogrid/killweb-simulations/pkg/config"
	"github.com/picogrid/killweb-simulations/pkg/simulation"
	"github.com/picogrid/killweb-simulations/pkg/utils"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage run profiles",
	Long:  `Manage saved run profiles: a scenario file plus parameter overrides`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	RunE:  listProfiles,
}

var profileAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace a profile",
	RunE:  addProfile,
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a profile",
	RunE:  removeProfile,
}

func init() {
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileRemoveCmd)
}

func listProfiles(_ *cobra.Command, _ []string) error {
	profiles, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	if len(profiles.Profiles) == 0 {
		fmt.Println("No profiles configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSCENARIO\tOVERRIDES\tDESCRIPTION")
	_, _ = fmt.Fprintln(w, "----\t--------\t---------\t-----------")

	for _, p := range profiles.Profiles {
		scenario := p.Scenario
		if scenario == "" {
			scenario = "(default)"
		}
		overrides := make([]string, 0, len(p.Parameters))
		for _, k := range slices.Sorted(maps.Keys(p.Parameters)) {
			overrides = append(overrides, fmt.Sprintf("%s=%v", k, p.Parameters[k]))
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, scenario, strings.Join(overrides, ","), p.Description)
	}

	return w.Flush()
}

func addProfile(_ *cobra.Command, _ []string) error {
	profiles, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	var p config.Profile
	namePrompt := &survey.Input{Message: "Profile name:"}
	if err := survey.AskOne(namePrompt, &p.Name, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	if _, exists := profiles.Find(p.Name); exists {
		replace := false
		confirm := &survey.Confirm{Message: fmt.Sprintf("Profile %s exists. Replace it?", p.Name)}
		if err := survey.AskOne(confirm, &replace); err != nil {
			return err
		}
		if !replace {
			return nil
		}
	}

	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return fmt.Errorf("failed to discover simulations: %w", err)
	}
	if len(simInfos) == 0 {
		return fmt.Errorf("no simulations found")
	}
	names := make([]string, len(simInfos))
	for i, info := range simInfos {
		names[i] = info.Config.Name
	}
	simPrompt := &survey.Select{Message: "Simulation:", Options: names}
	if err := survey.AskOne(simPrompt, &p.Simulation); err != nil {
		return err
	}

	scenarioPrompt := &survey.Input{
		Message: "Scenario file:",
		Help:    "Leave empty to run the built-in reference scenario",
	}
	if err := survey.AskOne(scenarioPrompt, &p.Scenario); err != nil {
		return err
	}

	descPrompt := &survey.Input{Message: "Description:"}
	if err := survey.AskOne(descPrompt, &p.Description); err != nil {
		return err
	}

	info, err := utils.FindSimulation(simInfos, p.Simulation)
	if err != nil {
		return err
	}
	if p.Parameters, err = promptOverrides(info.Config.Parameters); err != nil {
		return err
	}

	if err := profiles.Put(p); err != nil {
		return err
	}
	if err := config.SaveProfiles(profiles); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}

	fmt.Printf("Profile %s saved\n", p.Name)
	return nil
}

// promptOverrides lets the user pick which parameters the profile pins
func promptOverrides(params []simulation.Parameter) (map[string]interface{}, error) {
	var options []string
	for _, param := range params {
		if param.Name != "scenario" {
			options = append(options, param.Name)
		}
	}
	if len(options) == 0 {
		return nil, nil
	}

	var chosen []string
	prompt := &survey.MultiSelect{
		Message: "Parameters to override:",
		Options: options,
	}
	if err := survey.AskOne(prompt, &chosen); err != nil {
		return nil, err
	}

	selected := make([]simulation.Parameter, 0, len(chosen))
	for _, param := range params {
		for _, name := range chosen {
			if param.Name == name {
				selected = append(selected, param)
			}
		}
	}
	if len(selected) == 0 {
		return nil, nil
	}
	return utils.PromptForParameters(selected)
}

func removeProfile(_ *cobra.Command, _ []string) error {
	profiles, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	if len(profiles.Profiles) == 0 {
		fmt.Println("No profiles to remove")
		return nil
	}

	var selected string
	prompt := &survey.Select{
		Message: "Select profile to remove:",
		Options: profiles.Names(),
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return err
	}

	confirm := false
	confirmPrompt := &survey.Confirm{
		Message: fmt.Sprintf("Are you sure you want to remove %s?", selected),
	}
	if err := survey.AskOne(confirmPrompt, &confirm); err != nil {
		return err
	}
	if !confirm {
		return nil
	}

	if err := profiles.Remove(selected); err != nil {
		return err
	}
	if err := config.SaveProfiles(profiles); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}

	fmt.Printf("Profile %s removed\n", selected)
	return nil
}
