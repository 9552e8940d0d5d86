package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskribe/deskribe/pkg/orchestrator"
	"github.com/deskribe/deskribe/pkg/telemetry"
)

func newApplyCommand() *cobra.Command {
	var planFile string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a previously computed DeskribePlan",
		Long: `Apply reads a DeskribePlan written by 'deskribe plan', applies each
resource's Backend Adapter sequentially in declared order, resolves
@resource(...) references against the aggregated backend outputs, and
renders and applies the workload via the platform's Runtime Adapter.

Apply is never parallelized: backend outputs feed reference
resolution, and backends may share cloud-level locks. There is no
automatic rollback; a failed apply leaves already-applied resources
in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := readPlan(planFile)
			if err != nil {
				return fmt.Errorf("read plan: %w", err)
			}

			logger := telemetry.NewDefaultLogger()
			reg := newRegistry(logger)
			policyEngine, err := newPolicyEngine(cmd.Context(), logger)
			if err != nil {
				return err
			}

			eng := orchestrator.New(reg, policyEngine, nil)
			if err := eng.Apply(cmd.Context(), plan); err != nil {
				return fmt.Errorf("apply: %w", err)
			}

			fmt.Printf("applied plan %s for %s/%s\n", plan.ID, plan.AppName, plan.Environment)
			for _, w := range plan.Warnings {
				fmt.Printf("  warning: [%s] %s (%s)\n", w.Kind, w.Message, w.Subject)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&planFile, "plan", "p", "plan.json", "plan file produced by 'deskribe plan'")

	return cmd
}
