package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

const (
	ProjectName    = "Crypto Risk Engine"
	ProjectVersion = "1.0.0"
	ProjectRepo    = "github.com/ducminhle1904/crypto-risk-engine"
)

// Build information, set with -ldflags "-X .../cli.BuildCommit=..."
var (
	BuildDate   = "unknown"
	BuildCommit = "dev"
)

// VersionInfo contains version and build information
type VersionInfo struct {
	ProjectName  string `json:"project_name"`
	Version      string `json:"version"`
	BuildDate    string `json:"build_date"`
	BuildCommit  string `json:"build_commit"`
	GoVersion    string `json:"go_version"`
	Architecture string `json:"architecture"`
	Repository   string `json:"repository"`
}

// GetVersionInfo returns complete version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		ProjectName:  ProjectName,
		Version:      ProjectVersion,
		BuildDate:    BuildDate,
		BuildCommit:  BuildCommit,
		GoVersion:    runtime.Version(),
		Architecture: runtime.GOOS + "/" + runtime.GOARCH,
		Repository:   ProjectRepo,
	}
}

var versionDetailed bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		info := GetVersionInfo()
		out := cmd.OutOrStdout()
		if !versionDetailed {
			fmt.Fprintf(out, "risk-engine v%s\n", info.Version)
			fmt.Fprintf(out, "Build: %s (%s)\n", info.BuildCommit, info.BuildDate)
			fmt.Fprintf(out, "Go: %s (%s)\n", info.GoVersion, info.Architecture)
			return
		}
		fmt.Fprintf(out, "╔═══════════════════════════════════════╗\n")
		fmt.Fprintf(out, "║           VERSION INFORMATION         ║\n")
		fmt.Fprintf(out, "╠═══════════════════════════════════════╣\n")
		fmt.Fprintf(out, "║ Project:     %-24s ║\n", info.ProjectName)
		fmt.Fprintf(out, "║ Version:     %-24s ║\n", info.Version)
		fmt.Fprintf(out, "║ Repository:  %-24s ║\n", info.Repository)
		fmt.Fprintf(out, "║ Build Date:  %-24s ║\n", info.BuildDate)
		fmt.Fprintf(out, "║ Build Hash:  %-24s ║\n", info.BuildCommit)
		fmt.Fprintf(out, "║ Go Version:  %-24s ║\n", info.GoVersion)
		fmt.Fprintf(out, "║ Platform:    %-24s ║\n", info.Architecture)
		fmt.Fprintf(out, "╚═══════════════════════════════════════╝\n")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&versionDetailed, "detailed", "d", false, "print a detailed box")
}
