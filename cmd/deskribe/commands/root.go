// Package commands implements the deskribe CLI driver (§6): a thin cobra
// wrapper around pkg/orchestrator.Engine's four entry points. Exit
// conventions follow spec.md §6: 0 on success, non-zero on any error;
// validation/warning-only runs still exit 0.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskribe/deskribe/pkg/policy"
	"github.com/deskribe/deskribe/pkg/registry"
	"github.com/deskribe/deskribe/pkg/telemetry"
)

var (
	platformPath  string
	envName       string
	policyDirs    []string
	watchPolicies bool
	jsonOutput    bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "deskribe",
		Short: "Deskribe - Manifest Orchestration Engine",
		Long: `Deskribe turns a developer-authored manifest plus a platform team's
layered configuration into a validated, planned, and applied workload.

The core ships with no concrete Resource Provider, Backend Adapter, or
Runtime Adapter registered: those are supplied by the operator's own
build (spec.md's adapter contracts are the integration surface).`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVar(&platformPath, "platform", "./platform", "platform config directory (base.json + envs/<env>.json)")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "dev", "target environment name")
	rootCmd.PersistentFlags().StringSliceVar(&policyDirs, "policy-dir", nil, "additional Rego policy bundle directories (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&watchPolicies, "watch-policies", false, "hot-reload --policy-dir bundles on change instead of loading them once")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON output")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newDestroyCommand())

	return rootCmd
}

// newRegistry returns an empty Plugin Registry. Real Resource Providers,
// Backend Adapters, and Runtime Adapters are registered by the
// operator's own build before the engine runs (§4.2: registration
// completes before any command runs); this stock binary registers
// nothing.
func newRegistry(logger *telemetry.Logger) *registry.Registry {
	return registry.New(logger)
}

// newPolicyEngine compiles the built-in Rego bundles plus any bundles
// found under --policy-dir, watching the latter when --watch-policies is
// set. It always returns a compiled engine, or an error if a bundle fails
// to compile, load or be watched.
func newPolicyEngine(ctx context.Context, logger *telemetry.Logger) (*policy.Engine, error) {
	eng, err := policy.NewEngine(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("compile built-in policy bundles: %w", err)
	}
	if len(policyDirs) > 0 {
		if err := eng.LoadPolicies(ctx, policyDirs); err != nil {
			return nil, fmt.Errorf("load --policy-dir bundles: %w", err)
		}
		if watchPolicies {
			if err := eng.Watch(ctx, policyDirs); err != nil {
				return nil, fmt.Errorf("watch --policy-dir bundles: %w", err)
			}
		}
	}
	return eng, nil
}
