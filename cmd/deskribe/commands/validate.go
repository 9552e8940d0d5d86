package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskribe/deskribe/pkg/model"
	"github.com/deskribe/deskribe/pkg/orchestrator"
	"github.com/deskribe/deskribe/pkg/telemetry"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [manifest]",
		Short: "Validate a manifest against platform config and policy",
		Long: `Validate loads the manifest, platform base, and environment overlay,
runs the fixed Policy Validator checks and any compiled Rego bundles,
cross-checks @resource(...) references against declared resource
types, and runs each declared resource's Provider.Validate.

Exit code is 0 whether or not the manifest is valid; only a failure to
complete the command itself (a missing file, a malformed document) is
reported as an error.`,
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
			result, err := eng.Validate(cmd.Context(), manifestPath, platformPath, envName)
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}

			printValidationResult(result)
			return nil
		},
	}
	return cmd
}

func printValidationResult(result model.ValidationResult) {
	if jsonOutput {
		enc, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(enc))
		return
	}

	if result.IsValid {
		fmt.Println("valid")
	} else {
		fmt.Println("invalid")
	}
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  warning: [%s] %s (%s)\n", w.Kind, w.Message, w.Subject)
	}
}
