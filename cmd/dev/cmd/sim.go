package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

// SimCmd builds the cli for the host and runs the station against the simulated bus.
func SimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run the station loop against the simulated bus and sensors",
		Long: `Build the climate cli for the host and start "climate run --adapter sim".

The simulated bus carries an HTU21 and an LCD backpack, the CO2 signal sweeps
across the alarm threshold. Stop it with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			version := cmd.Flag("version").Value.String()
			err := build.GoBuild("dist/climate-sim", "./cmd/climate", build.GoBuildOpts{
				Version:       version,
				InjectVersion: true,
				ConfigPackage: "github.com/mklimuk/climate/config",
				EnableCgo:     true,
				Arch:          runtime.GOARCH,
				OS:            runtime.GOOS,
			})
			if err != nil {
				return fmt.Errorf("could not build the cli: %w", err)
			}

			simArgs := []string{"run", "--adapter", "sim"}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				simArgs = append([]string{"--verbose"}, simArgs...)
			}
			if cfg, _ := cmd.Flags().GetString("config"); cfg != "" {
				simArgs = append([]string{"--config", cfg}, simArgs...)
			}
			slog.Info("starting simulation", "args", simArgs)
			sim := exec.CommandContext(cmd.Context(), "./dist/climate-sim", simArgs...)
			sim.Stdout = os.Stdout
			sim.Stderr = os.Stderr
			sim.Stdin = os.Stdin
			if err := sim.Run(); err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("version", "sim", "version injected into the cli")
	cmd.Flags().String("config", "", "station configuration file")
	return cmd
}
