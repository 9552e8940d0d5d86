// Package orchestrator implements the Orchestration Engine (§4.6): the
// four command entry points — Validate, Plan, Apply, Destroy — that share
// a common loading prefix and drive the Plugin Registry's adapters in the
// order spec.md §4.6/§5 requires.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/deskribe/deskribe/pkg/loader"
	"github.com/deskribe/deskribe/pkg/merge"
	"github.com/deskribe/deskribe/pkg/model"
	"github.com/deskribe/deskribe/pkg/policy"
	"github.com/deskribe/deskribe/pkg/reference"
	"github.com/deskribe/deskribe/pkg/registry"
	"github.com/deskribe/deskribe/pkg/telemetry"
)

// Engine holds every capability the four entry points share: the Plugin
// Registry, the Loader, the fixed-check Policy Validator, an optional
// Rego-bundle Policy Engine, and the Merge Engine.
type Engine struct {
	registry     *registry.Registry
	loader       *loader.Loader
	validator    *policy.Validator
	policyEngine *policy.Engine
	merger       *merge.Merger

	tel    *telemetry.Telemetry
	logger *telemetry.Logger

	// maxParallel bounds the errgroup used for Plan's per-resource
	// provider.Plan fan-out (§5: "MAY parallelize planning").
	maxParallel int
}

// New returns an Engine wired to reg. tel may be nil, in which case spans
// and phase metrics are skipped and a default console logger is used.
// policyEngine may be nil to run with only the fixed checks of §4.4.
func New(reg *registry.Registry, policyEngine *policy.Engine, tel *telemetry.Telemetry) *Engine {
	logger := telemetry.NewDefaultLogger()
	if tel != nil {
		logger = tel.Logger
	}
	return &Engine{
		registry:     reg,
		loader:       loader.New(),
		validator:    policy.New(),
		policyEngine: policyEngine,
		merger:       merge.New(),
		tel:          tel,
		logger:       logger.NewComponentLogger("orchestrator"),
		maxParallel:  8,
	}
}

// loadPrefix runs the Load step every entry point shares.
func (e *Engine) loadPrefix(ctx context.Context, manifestPath, platformPath, env string) (loader.Result, error) {
	return e.loader.LoadAll(manifestPath, platformPath, env, e.registry.ResourceProviderTypes())
}

// Validate implements §4.6 Validate: load, policy-validate, reference-
// validate, then per-resource Provider.Validate, aggregating into one
// ValidationResult.
func (e *Engine) Validate(ctx context.Context, manifestPath, platformPath, env string) (model.ValidationResult, error) {
	scope := telemetry.StartPhase(ctx, "validate", "Validate")
	var phaseErr error
	defer func() { scope.End(e.tel, "validate", "Validate", phaseErr) }()

	res, err := e.loadPrefix(scope.Ctx, manifestPath, platformPath, env)
	if err != nil {
		phaseErr = err
		return model.ValidationResult{}, err
	}
	scope.Logger.Debug("Loaded")

	result := model.NewValidationResult()
	result.Warnings = append(result.Warnings, res.Warnings...)

	// Step 2: policy-validate. A hard error stops the pipeline here.
	pr := e.validator.Validate(policy.ValidatorInput{Manifest: res.Manifest, Platform: res.Platform, Env: res.Environment})
	result.Errors = append(result.Errors, pr.Errors...)
	result.Warnings = append(result.Warnings, pr.Warnings...)
	if !pr.IsValid {
		result.IsValid = false
		scope.Logger.Debug("Failed")
		return result, nil
	}

	if e.policyEngine != nil {
		opaResult, err := e.policyEngine.Evaluate(scope.Ctx, policy.Input{Resources: res.Manifest.Resources, Platform: res.Platform})
		if err != nil {
			scope.Logger.Warnf("OPA policy evaluation failed, continuing with fixed checks only: %v", err)
		} else {
			for _, v := range opaResult.Violations {
				result.AddWarning(model.ErrorKindPolicyBundleViolation, v.Message, v.Policy)
			}
			if !opaResult.IsValid {
				result.IsValid = false
				scope.Logger.Debug("Failed")
				return result, nil
			}
		}
	}
	scope.Logger.Debug("Validated (policy)")

	if len(res.Manifest.Services) > 1 {
		result.AddWarning(model.ErrorKindAdditionalServicesIgnored,
			"additional services are not yet processed", fmt.Sprintf("%d services declared", len(res.Manifest.Services)))
	}

	// Step 3: extract references from the first service's env and
	// validate against declared resource types.
	var svcEnv map[string]string
	if len(res.Manifest.Services) > 0 {
		svcEnv = res.Manifest.Services[0].Env
	}
	declared := reference.DeclaredTypes(res.Manifest.Resources)
	refs := reference.Extract(svcEnv)
	result.Merge(reference.ValidateAgainstDeclaredTypes(refs, declared))

	// Step 4: per-resource Provider.Validate.
	for _, r := range res.Manifest.Resources {
		if err := ctx.Err(); err != nil {
			phaseErr = model.NewError(model.ErrorKindCancelled, "validate cancelled").WithSubject(r.Type).WithCause(err)
			return result, phaseErr
		}
		provider, ok := e.registry.GetResourceProvider(r.Type)
		if !ok {
			result.AddError(fmt.Sprintf("%s: no Resource Provider registered", model.ErrorKindNoProvider) + " (" + r.Type + ")")
			continue
		}
		pv := provider.Validate(scope.Ctx, r, model.ResourceContext{Platform: res.Platform, Env: res.Environment})
		result.Merge(pv)

		// Messaging resources additionally run the registered Messaging
		// Provider's per-topic checks (§4.7: "additional policy checks
		// such as minimum partition counts"), dispatched through the
		// registry like every other adapter kind rather than relying on
		// a Resource Provider to delegate to itself.
		if len(r.Topics) > 0 {
			if mp, ok := e.registry.GetMessagingProvider(r.Type); ok {
				result.Merge(mp.ValidateTopics(scope.Ctx, r.Topics))
			}
		}
	}

	scope.Logger.Debug("Done")
	return result, nil
}

// Plan implements §4.6 Plan: load + merge, then per-resource
// Provider.Plan in declared order. Planning is pure and has no
// suspension points, so the per-resource fan-out is safe to bound-
// parallelize (§5); results are written back by declared index so
// Invariant I2 (declared-order preservation) holds regardless of
// completion order.
func (e *Engine) Plan(ctx context.Context, manifestPath, platformPath, env string, images map[string]string) (*model.DeskribePlan, error) {
	scope := telemetry.StartPhase(ctx, "plan", "Plan")
	var phaseErr error
	defer func() { scope.End(e.tel, "plan", "Plan", phaseErr) }()

	res, err := e.loadPrefix(scope.Ctx, manifestPath, platformPath, env)
	if err != nil {
		phaseErr = err
		return nil, err
	}
	scope.Logger.Debug("Loaded")

	workload := e.merger.Merge(res.Manifest, res.Platform, res.Environment, images)
	scope.Logger.Debug("Merged")

	appName := res.Manifest.Name
	resourcePlans := make([]model.ResourcePlanResult, len(res.Manifest.Resources))
	var warnings []model.Warning
	if len(res.Manifest.Services) > 1 {
		warnings = append(warnings, model.Warning{
			Kind:    model.ErrorKindAdditionalServicesIgnored,
			Message: "additional services are not yet processed",
			Subject: fmt.Sprintf("%d services declared", len(res.Manifest.Services)),
		})
	}

	g, gctx := errgroup.WithContext(scope.Ctx)
	g.SetLimit(e.maxParallel)

	for i, r := range res.Manifest.Resources {
		i, r := i, r
		provider, ok := e.registry.GetResourceProvider(r.Type)
		if !ok {
			warnings = append(warnings, model.Warning{
				Kind:    model.ErrorKindNoProvider,
				Message: "no Resource Provider registered; resource skipped",
				Subject: r.Type,
			})
			continue
		}
		g.Go(func() error {
			pc := model.PlanContext{Platform: res.Platform, EnvConfig: res.Environment, Env: workload.EnvironmentVariables, AppName: appName}
			rp, err := provider.Plan(gctx, r, pc)
			if err != nil {
				return model.NewError(model.ErrorKindProviderValidation, err.Error()).WithSubject(r.Type)
			}

			// Messaging resources additionally run the registered
			// Messaging Provider's ACL planning (§4.7), dispatched
			// through the registry rather than the Resource Provider
			// delegating to itself.
			if len(r.Topics) > 0 {
				if mp, ok := e.registry.GetMessagingProvider(r.Type); ok {
					acls, err := mp.PlanACLs(gctx, r.Topics)
					if err != nil {
						return model.NewError(model.ErrorKindProviderValidation, err.Error()).WithSubject(r.Type)
					}
					if rp.Configuration == nil {
						rp.Configuration = map[string]interface{}{}
					}
					for k, v := range acls {
						rp.Configuration[k] = v
					}
				}
			}

			resourcePlans[i] = rp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		phaseErr = err
		return nil, err
	}

	// Resources whose provider was missing leave a zero-value slot;
	// drop those so the plan's ResourcePlans slice matches only the
	// resources actually planned.
	compact := resourcePlans[:0]
	for _, rp := range resourcePlans {
		if rp.ResourceType != "" {
			compact = append(compact, rp)
		}
	}

	plan := &model.DeskribePlan{
		ID:                uuid.NewString(),
		AppName:           appName,
		Environment:       env,
		Platform:          res.Platform,
		EnvironmentConfig: res.Environment,
		ResourcePlans:     compact,
		Workload:          workload,
		Warnings:          append(append([]model.Warning{}, res.Warnings...), warnings...),
		Summary:           summarize(compact),
		CreatedAt:         time.Now(),
	}
	scope.Logger.Debug("Planned")
	return plan, nil
}

func summarize(plans []model.ResourcePlanResult) model.PlanSummary {
	var s model.PlanSummary
	for _, p := range plans {
		switch p.Action {
		case model.PlanActionCreate:
			s.ToCreate++
		case model.PlanActionUpdate:
			s.ToUpdate++
		case model.PlanActionNoChange:
			s.NoChange++
		}
	}
	return s
}

// Apply implements §4.6 Apply: sequential Backend Adapter application in
// declared order, reference resolution over the aggregated outputs, then
// a single Runtime Adapter render+apply. Apply is never parallelized
// (§5): backend outputs feed reference resolution, and backends may
// share cloud-level locks.
func (e *Engine) Apply(ctx context.Context, plan *model.DeskribePlan) error {
	scope := telemetry.StartPhase(ctx, "apply", "Apply")
	var phaseErr error
	defer func() { scope.End(e.tel, "apply", "Apply", phaseErr) }()

	backends := merge.EffectiveBackends(plan.Platform, plan.EnvironmentConfig)

	outputs := make(map[string]map[string]string, len(plan.ResourcePlans))
	for _, rp := range plan.ResourcePlans {
		if err := ctx.Err(); err != nil {
			phaseErr = model.NewError(model.ErrorKindCancelled, "apply cancelled").WithSubject(rp.ResourceType).WithCause(err)
			return phaseErr
		}

		backendName, ok := backends[rp.ResourceType]
		if !ok {
			phaseErr = model.NewError(model.ErrorKindBackendApplyFailed, "no backend routing entry for resource type").WithSubject(rp.ResourceType)
			return phaseErr
		}
		adapter, ok := e.registry.GetBackendAdapter(backendName)
		if !ok {
			phaseErr = model.NewError(model.ErrorKindBackendApplyFailed, "no Backend Adapter registered").WithSubject(backendName)
			return phaseErr
		}

		out, err := adapter.Apply(scope.Ctx, plan)
		if err != nil || !out.Success {
			msg := "backend apply failed"
			if len(out.Errors) > 0 {
				msg = out.Errors[0]
			}
			phaseErr = model.NewError(model.ErrorKindBackendApplyFailed, msg).WithSubject(rp.ResourceType).WithCause(err)
			return phaseErr
		}
		for resType, kv := range out.ResourceOutputs {
			if outputs[resType] == nil {
				outputs[resType] = map[string]string{}
			}
			for k, v := range kv {
				outputs[resType][k] = v
			}
		}
	}
	scope.Logger.Debug("InfraApplied")

	// Resolve references in the workload's env using the aggregated
	// outputs. Unresolved references surface as warnings, not a hard
	// failure (§4.3, §4.6 step 3).
	resolved, warnings := reference.Resolve(plan.Workload.EnvironmentVariables, outputs, scope.Logger)
	workload := plan.Workload.Clone()
	workload.EnvironmentVariables = resolved
	plan.Warnings = append(plan.Warnings, warnings...)
	scope.Logger.Debug("Resolved")

	runtimeAdapter, ok := e.registry.GetRuntimeAdapter(plan.Platform.Defaults.Runtime)
	if !ok {
		plan.Warnings = append(plan.Warnings, model.Warning{
			Kind:    model.ErrorKindNoRuntime,
			Message: "no Runtime Adapter registered; deployment skipped",
			Subject: plan.Platform.Defaults.Runtime,
		})
		scope.Logger.Debug("Done (no runtime adapter)")
		return nil
	}

	manifest, err := runtimeAdapter.Render(scope.Ctx, workload)
	if err != nil {
		phaseErr = model.NewError(model.ErrorKindBackendApplyFailed, err.Error()).WithSubject(runtimeAdapter.Name())
		return phaseErr
	}
	if err := runtimeAdapter.Apply(scope.Ctx, manifest); err != nil {
		phaseErr = model.NewError(model.ErrorKindBackendApplyFailed, err.Error()).WithSubject(runtimeAdapter.Name())
		return phaseErr
	}
	scope.Logger.Debug("RuntimeApplied")
	return nil
}

// Destroy implements §4.6 Destroy: runtime teardown first, then
// best-effort backend teardown per routed resource type. Errors from one
// backend's Destroy are logged but do not abort the remaining destroys.
func (e *Engine) Destroy(ctx context.Context, manifestPath, platformPath, env string) error {
	scope := telemetry.StartPhase(ctx, "destroy", "Destroy")
	var phaseErr error
	defer func() { scope.End(e.tel, "destroy", "Destroy", phaseErr) }()

	res, err := e.loadPrefix(scope.Ctx, manifestPath, platformPath, env)
	if err != nil {
		phaseErr = err
		return err
	}
	scope.Logger.Debug("Loaded")

	workload := e.merger.Merge(res.Manifest, res.Platform, res.Environment, nil)

	if runtimeAdapter, ok := e.registry.GetRuntimeAdapter(res.Platform.Defaults.Runtime); ok {
		if err := runtimeAdapter.Destroy(scope.Ctx, workload.Namespace); err != nil {
			scope.Logger.Warnf("runtime destroy failed, continuing with backend teardown: %v", err)
		}
	}
	scope.Logger.Debug("RuntimeApplied (destroyed)")

	// Destroy routes strictly through platform.backends (§4.6 step 3),
	// not the platform∪env union Apply uses in step 1: an environment
	// overlay that redirects a resource to a different backend should
	// not cause Destroy to tear down through that overridden backend
	// instead of the platform team's own routing.
	for resourceType, backendName := range res.Platform.Backends {
		if err := ctx.Err(); err != nil {
			phaseErr = model.NewError(model.ErrorKindCancelled, "destroy cancelled").WithSubject(resourceType).WithCause(err)
			return phaseErr
		}
		adapter, ok := e.registry.GetBackendAdapter(backendName)
		if !ok {
			scope.Logger.Warnf("no Backend Adapter %q registered for resource type %q; skipping destroy", backendName, resourceType)
			continue
		}
		if err := adapter.Destroy(scope.Ctx, res.Manifest.Name, env, res.Platform); err != nil {
			scope.Logger.Warnf("backend %q destroy failed for resource type %q: %v", backendName, resourceType, err)
		}
	}
	scope.Logger.Debug("Done")
	return nil
}
