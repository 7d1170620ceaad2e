package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-risk-engine/internal/config"
	"github.com/ducminhle1904/crypto-risk-engine/internal/strategy"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List strategy profiles",
	Long: `Profiles lists the built-in strategy profiles plus those loaded from the
configured profiles file (or --file).

Examples:
  risk-engine profiles
  risk-engine profiles show swing
  risk-engine profiles show breakout --yaml`,
	Args: cobra.NoArgs,
	RunE: runProfilesList,
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the voters, modifiers and exits of a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesShow,
}

var (
	profilesFile string
	profilesYAML bool
)

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesShowCmd)

	profilesCmd.PersistentFlags().StringVar(&profilesFile, "file", "", "additional profiles file (YAML)")
	profilesShowCmd.Flags().BoolVar(&profilesYAML, "yaml", false, "print the profile as YAML")
}

// profileRegistry uses the config when it exists, otherwise the built-ins
func profileRegistry() (*strategy.Registry, error) {
	reg := strategy.NewRegistry()
	if _, err := os.Stat(configPath); err == nil {
		cfg, err := config.Load(configPath, envFile)
		if err != nil {
			return nil, err
		}
		if reg, err = cfg.Registry(); err != nil {
			return nil, err
		}
	}
	if profilesFile != "" {
		if err := reg.Load(profilesFile); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func runProfilesList(cmd *cobra.Command, _ []string) error {
	reg, err := profileRegistry()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetTitle("STRATEGY PROFILES")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Name", "Families", "Min Strength", "Stop", "Target", "Description"})
	for _, name := range reg.Names() {
		p, err := reg.Get(name)
		if err != nil {
			return err
		}
		families := make([]string, len(p.Voters))
		for i, v := range p.Voters {
			families[i] = string(v.Family)
		}
		t.AppendRow(table.Row{
			p.Name,
			strings.Join(families, ", "),
			fmt.Sprintf("%.2f", p.MinStrength),
			stopText(p.Exits),
			fmt.Sprintf("%.2f%%", p.Exits.TakeProfitPercent),
			p.Description,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 6, WidthMax: 50},
	})
	t.Render()
	return nil
}

func runProfilesShow(cmd *cobra.Command, args []string) error {
	reg, err := profileRegistry()
	if err != nil {
		return err
	}
	p, err := reg.Get(args[0])
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(reg.Names(), ", "))
	}

	out := cmd.OutOrStdout()
	if profilesYAML {
		data, err := strategy.MarshalProfiles([]strategy.Profile{p})
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(fmt.Sprintf("%s (min strength %.2f)", strings.ToUpper(p.Name), p.MinStrength))
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Family", "Weight", "Rule", "Conditions", "Vote", "Score"})
	for _, v := range p.Voters {
		for _, r := range v.Rules {
			t.AppendRow(table.Row{v.Family, v.Weight, r.Name, conditionsText(r.When), r.Vote, r.Score})
		}
		t.AppendSeparator()
	}
	for _, m := range p.Modifiers {
		t.AppendRow(table.Row{"modifier", "", m.Name, conditionsText(m.When), fmt.Sprintf("x%.2f", m.Multiplier), ""})
	}
	t.AppendFooter(table.Row{"exits", "", "", fmt.Sprintf("stop %s, target %.2f%%%s", stopText(p.Exits), p.Exits.TakeProfitPercent, trailingText(p.Exits)), "", ""})
	t.Render()
	return nil
}

func conditionsText(conds []strategy.Condition) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.String()
	}
	return strings.Join(parts, " && ")
}

func stopText(e strategy.Exits) string {
	if e.ATRStopMultiplier > 0 {
		return fmt.Sprintf("%.1fxATR (%.2f%%)", e.ATRStopMultiplier, e.StopLossPercent)
	}
	return fmt.Sprintf("%.2f%%", e.StopLossPercent)
}

func trailingText(e strategy.Exits) string {
	if e.TrailingPercent <= 0 {
		return ""
	}
	return fmt.Sprintf(", trailing %.2f%%", e.TrailingPercent)
}
