package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/olekukonko/tablewriter"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local environment",
	Long: `Verifies the pieces livegen depends on: the ffmpeg and ffprobe
binaries used for media decoding, the configured API key, and the host
hardware.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Check", "Status", "Detail")

	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if path, err := exec.LookPath(bin); err == nil {
			table.Append(bin, "ok", path)
		} else {
			table.Append(bin, "MISSING", "video and audio decoding will fail")
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		table.Append("config", "ERROR", err.Error())
	} else {
		table.Append("config", "ok", fmt.Sprintf("gateway %s", cfg.GatewayURL))
		if cfg.APIKey != "" {
			table.Append("api key", "ok", "configured")
		} else {
			table.Append("api key", "MISSING", "set LIVEPEER_API_KEY or api_key in config")
		}
	}

	table.Append("os", "ok", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH))

	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		threads, _ := cpu.Counts(true)
		table.Append("cpu", "ok", fmt.Sprintf("%s (%d threads)", infos[0].ModelName, threads))
	} else {
		table.Append("cpu", "unknown", "could not query cpu info")
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		table.Append("memory", "ok", fmt.Sprintf("%.1f GB total, %.1f GB available",
			float64(vmem.Total)/(1<<30), float64(vmem.Available)/(1<<30)))
	} else {
		table.Append("memory", "unknown", "could not query memory info")
	}

	table.Render()
	return nil
}
