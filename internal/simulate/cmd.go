package simulate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/compose-network/token-bridge/configs"
	"github.com/compose-network/token-bridge/internal/deploy"
	"github.com/compose-network/token-bridge/internal/report"
	"github.com/spf13/cobra"
)

var ErrScenarioFailed = errors.New("scenario failed")

var CMD = &cobra.Command{
	Use:   "simulate",
	Short: "Run a bridge scenario against an in-process L1 and L2",
	RunE: func(cmd *cobra.Command, args []string) error {
		if list, _ := cmd.Flags().GetBool("list"); list {
			for _, name := range BuiltinNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}

		cfg, err := configs.Load()
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("scenario")
		out, _ := cmd.Flags().GetString("out")

		sc, err := resolve(name)
		if err != nil {
			return err
		}

		r, err := RunConfig(cfg, sc)
		if err != nil {
			return fmt.Errorf("error occurred running scenario %s: %w", sc.Name, err)
		}
		if out != "" {
			if err := report.Write(out, r); err != nil {
				return err
			}
			slog.With("path", out).Info("report written")
		}
		if n := r.Failed(); n > 0 {
			return fmt.Errorf("%w: %s has %d failed steps", ErrScenarioFailed, sc.Name, n)
		}
		slog.With("scenario", sc.Name).With("steps", len(r.Steps)).Info("scenario passed")
		return nil
	},
}

func init() {
	CMD.Flags().String("scenario", "round_trip", "Scenario file or built-in scenario name")
	CMD.Flags().String("out", "", "Write the JSON report to this path")
	CMD.Flags().Bool("list", false, "List built-in scenarios")
}

// resolve prefers a file on disk and falls back to a built-in name.
func resolve(name string) (Scenario, error) {
	if _, err := os.Stat(name); err == nil {
		return Load(name)
	}
	return Builtin(name)
}

// RunConfig deploys a fresh stack from cfg and plays sc on it.
func RunConfig(cfg configs.Config, sc Scenario) (report.Report, error) {
	sCfg, err := deploy.StackConfigFrom(cfg)
	if err != nil {
		return report.Report{}, err
	}
	Apply(sc, &sCfg)

	stack, err := deploy.NewStack(sCfg)
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to deploy stack: %w", err)
	}
	defer stack.Close()

	return NewRunner(stack).Run(sc)
}
