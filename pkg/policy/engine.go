package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/rego"

	"github.com/deskribe/deskribe/pkg/model"
	"github.com/deskribe/deskribe/pkg/telemetry"
)

// Engine compiles and evaluates the built-in Rego bundles (§5.4) plus any
// additional bundles found under --policy-dir. It runs after the fixed
// checks of pkg/policy.Validator and never replaces them: Engine failures
// are reported as an additional PolicyResult, not folded into §4.4's.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	builtins map[string]bool
	logger   *telemetry.Logger
	loader   *Loader
}

type compiledPolicy struct {
	policy *Policy
	query  rego.PreparedEvalQuery
}

// NewEngine creates an Engine with the built-in bundles compiled and ready.
func NewEngine(ctx context.Context, logger *telemetry.Logger) (*Engine, error) {
	if logger == nil {
		logger = telemetry.NewDefaultLogger()
	}
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		builtins: make(map[string]bool),
		logger:   logger.WithField("component", "policy-engine"),
		loader:   NewLoader(logger),
	}
	for _, p := range GetBuiltinPolicies() {
		if err := e.compileAndStore(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", p.Name, err)
		}
		e.builtins[p.Name] = true
	}
	return e, nil
}

// LoadPolicies compiles and adds policies loaded from the given paths,
// in addition to (not replacing) the built-ins.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	policies, err := e.loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}
	if err := e.replaceLoaded(ctx, policies); err != nil {
		return err
	}
	e.logger.Infof("loaded %d additional policy bundles", len(policies))
	return nil
}

// Watch starts watching paths for changes (SPEC_FULL.md §6 item 1b: a platform
// team editing --policy-dir bundles without restarting the engine) and
// recompiles the non-built-in bundle set on every debounced change. The
// initial load from paths must already have run via LoadPolicies; Watch
// only handles subsequent edits.
func (e *Engine) Watch(ctx context.Context, paths []string) error {
	return e.loader.Watch(ctx, paths, func(policies []Policy) error {
		return e.replaceLoaded(ctx, policies)
	})
}

// StopWatching stops a watch started with Watch.
func (e *Engine) StopWatching() error {
	return e.loader.StopWatching()
}

// replaceLoaded drops every currently compiled non-built-in policy and
// recompiles the given set in its place, so a policy file removed from
// disk between reloads stops being enforced.
func (e *Engine) replaceLoaded(ctx context.Context, policies []Policy) error {
	e.mu.Lock()
	for name := range e.policies {
		if !e.builtins[name] {
			delete(e.policies, name)
		}
	}
	e.mu.Unlock()

	for _, p := range policies {
		if err := e.compileAndStore(ctx, p); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", p.Name, err)
		}
	}
	return nil
}

// Evaluate runs every enabled, compiled policy once against in and
// aggregates their deny sets into a model.PolicyResult, the same result
// type the fixed-check Validator produces (§4.4); callers merge the two.
// IsValid is false iff some enabled policy produced an error- or
// critical-severity violation.
func (e *Engine) Evaluate(ctx context.Context, in Input) (model.PolicyResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if in.Context == nil {
		in.Context = &Context{Timestamp: time.Now()}
	}

	result := model.PolicyResult{IsValid: true}

	for name, cp := range e.policies {
		if !cp.policy.Enabled {
			continue
		}

		vs, err := e.evaluatePolicy(ctx, cp, in)
		if err != nil {
			e.logger.Errorf("policy %s evaluation failed: %v", name, err)
			continue
		}
		for _, v := range vs {
			result.Violations = append(result.Violations, v)
			if v.Severity == string(SeverityError) || v.Severity == string(SeverityCritical) {
				result.IsValid = false
			}
		}
	}

	return result, nil
}

func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, in Input) ([]model.PolicyViolation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []model.PolicyViolation
	for _, result := range results {
		for _, expr := range result.Expressions {
			denySet, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denySet {
				violations = append(violations, toViolation(cp.policy, d))
			}
		}
	}
	return violations, nil
}

func toViolation(policy *Policy, result interface{}) model.PolicyViolation {
	v := model.PolicyViolation{Policy: policy.Name, Severity: string(policy.Severity)}
	m, ok := result.(map[string]interface{})
	if !ok {
		v.Message = fmt.Sprintf("%v", result)
		return v
	}
	if msg, ok := m["message"].(string); ok {
		v.Message = msg
	}
	if sev, ok := m["severity"].(string); ok {
		v.Severity = sev
	}
	if res, ok := m["resource"].(string); ok {
		v.Resource = res
	}
	return v
}

func (e *Engine) compileAndStore(ctx context.Context, p Policy) error {
	query := fmt.Sprintf("data.%s.deny", extractPackageName(p.Rego))
	r := rego.New(
		rego.Module(p.Name+".rego", p.Rego),
		rego.Query(query),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare policy: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	pCopy := p
	e.policies[p.Name] = &compiledPolicy{policy: &pCopy, query: prepared}
	return nil
}

func extractPackageName(regoSrc string) string {
	for _, line := range strings.Split(regoSrc, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "deskribe.policies"
}

// ListPolicies returns every compiled policy, built-in and loaded.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		out = append(out, *cp.policy)
	}
	return out
}
