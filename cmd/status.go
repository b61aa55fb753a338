package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/xsplit/internal/config"
	"github.com/bnema/xsplit/internal/proc"
	"github.com/bnema/xsplit/internal/settings"
	"github.com/bnema/xsplit/internal/ui"
)

// StatusInfo represents the status command output
type StatusInfo struct {
	ManagerRunning  bool   `json:"manager_running"`
	ManagerPID      int32  `json:"manager_pid,omitempty"`
	PreloadAttached bool   `json:"preload_attached"`
	ConfigPath      string `json:"config_path"`
	ConfigPresent   bool   `json:"config_present"`
	ConfigModified  string `json:"config_modified,omitempty"`
	SplitOutputs    int    `json:"split_outputs"`
	Regions         int    `json:"regions"`
}

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show manager and split configuration state",
	Long:  `Show whether the window manager is running with the interception library attached, and summarize the current binary split config.`,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	s := settings.Get()
	info := StatusInfo{ConfigPath: configPath()}

	if p, err := proc.Find(s.WindowManager.ProcessName); err == nil {
		info.ManagerRunning = true
		info.ManagerPID = p.Pid
		if s.WindowManager.PreloadLibrary != "" {
			attached, err := proc.PreloadAttached(p.Pid, s.WindowManager.PreloadLibrary)
			if err == nil {
				info.PreloadAttached = attached
			}
		}
	}

	if st, err := os.Stat(info.ConfigPath); err == nil {
		info.ConfigPresent = true
		info.ConfigModified = st.ModTime().Format(time.RFC3339)
		entries, err := config.ReadFile(info.ConfigPath)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if !e.Tree.IsLeaf() {
				info.SplitOutputs++
				info.Regions += int(e.Tree.Leaves())
			}
		}
	}

	if statusJSON {
		return json.NewEncoder(os.Stdout).Encode(info)
	}

	var out strings.Builder
	out.WriteString(ui.HeaderStyle.Render("xsplit status"))
	out.WriteString("\n")

	manager := strings.Builder{}
	if info.ManagerRunning {
		manager.WriteString(ui.SuccessStyle.Render(
			fmt.Sprintf("● %s running (pid %d)", s.WindowManager.ProcessName, info.ManagerPID)))
	} else {
		manager.WriteString(ui.ErrorStyle.Render("○ " + s.WindowManager.ProcessName + " not running"))
	}
	manager.WriteString("\n")
	manager.WriteString(ui.SubheaderStyle.Render("Interception: "))
	switch {
	case info.PreloadAttached:
		manager.WriteString(ui.InfoStyle.Render("library attached"))
	case info.SplitOutputs > 0:
		manager.WriteString(ui.WarningStyle.Render("splits configured but library not attached"))
	default:
		manager.WriteString(ui.SubtleStyle.Render("library not attached"))
	}
	out.WriteString(ui.BoxStyle.Render(manager.String()))
	out.WriteString("\n\n")

	out.WriteString(ui.SubheaderStyle.Render("Config: "))
	out.WriteString(ui.TextStyle.Render(info.ConfigPath))
	out.WriteString("\n")
	if info.ConfigPresent {
		out.WriteString(ui.InfoStyle.Render(
			fmt.Sprintf("  %d split output(s), %d region(s)", info.SplitOutputs, info.Regions)))
		out.WriteString(ui.SubtleStyle.Render(" modified " + info.ConfigModified))
		out.WriteString("\n")
	} else {
		out.WriteString(ui.MutedStyle.Render("  absent (pass-through)"))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(ui.CreateSeparator(50, "─"))
	out.WriteString("\n")
	out.WriteString(ui.SubtleStyle.Render("Use 'xsplit apply <output> <layout>' to split an output"))
	out.WriteString("\n")
	out.WriteString(ui.SubtleStyle.Render("Use 'xsplit reset' to restore pass-through"))

	fmt.Println(out.String())
	return nil
}
