package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskribe/deskribe/pkg/orchestrator"
	"github.com/deskribe/deskribe/pkg/telemetry"
)

func newDestroyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "destroy [manifest]",
		Short: "Tear down a workload and its resources",
		Long: `Destroy loads the manifest, platform base, and environment overlay,
tears down the workload via the Runtime Adapter, then tears down each
backend-routed resource type. Teardown is best-effort: a failure on
one backend is logged and does not abort the remaining destroys, and
repeated Destroy calls against already-torn-down resources succeed.`,
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
			if err := eng.Destroy(cmd.Context(), manifestPath, platformPath, envName); err != nil {
				return fmt.Errorf("destroy: %w", err)
			}

			fmt.Println("destroyed")
			return nil
		},
	}
	return cmd
}
