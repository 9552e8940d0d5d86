package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deskribe/deskribe/pkg/model"
	"github.com/deskribe/deskribe/pkg/orchestrator"
	"github.com/deskribe/deskribe/pkg/telemetry"
)

func newPlanCommand() *cobra.Command {
	var (
		outFile string
		images  map[string]string
	)

	cmd := &cobra.Command{
		Use:   "plan [manifest]",
		Short: "Compute a DeskribePlan from manifest and platform config",
		Long: `Plan loads and merges the manifest, platform base, and environment
overlay into a WorkloadPlan, then calls each declared resource's
Provider.Plan in declared order. Planning never contacts external
systems; it is a pure projection and is persisted to --out for a later
'deskribe apply'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath := "manifest.json"
			if len(args) > 0 {
				manifestPath = args[0]
			}

			logger := telemetry.NewDefaultLogger()
			reg := newRegistry(logger)
			policyEngine, err := newPolicyEngine(cmd.Context(), logger)
			if err != nil {
				return err
			}

			eng := orchestrator.New(reg, policyEngine, nil)
			plan, err := eng.Plan(cmd.Context(), manifestPath, platformPath, envName, images)
			if err != nil {
				return fmt.Errorf("plan: %w", err)
			}

			if err := writePlan(outFile, plan); err != nil {
				return fmt.Errorf("write plan: %w", err)
			}
			printPlan(plan)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "plan.json", "output plan file path")
	cmd.Flags().StringToStringVar(&images, "image", nil, "serviceName=image overrides (repeatable)")

	return cmd
}

func writePlan(path string, plan *model.DeskribePlan) error {
	enc, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, enc, 0o644)
}

func readPlan(path string) (*model.DeskribePlan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var plan model.DeskribePlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func printPlan(plan *model.DeskribePlan) {
	if jsonOutput {
		enc, _ := json.MarshalIndent(plan, "", "  ")
		fmt.Println(string(enc))
		return
	}

	fmt.Printf("plan %s for %s/%s\n", plan.ID, plan.AppName, plan.Environment)
	fmt.Printf("  %d to create, %d to update, %d unchanged\n", plan.Summary.ToCreate, plan.Summary.ToUpdate, plan.Summary.NoChange)
	for _, rp := range plan.ResourcePlans {
		fmt.Printf("  %s: %s\n", rp.ResourceType, rp.Action)
	}
	for _, w := range plan.Warnings {
		fmt.Printf("  warning: [%s] %s (%s)\n", w.Kind, w.Message, w.Subject)
	}
}
