// Package reference implements the `@resource(<type>).<property>`
// expression grammar and its three operations: Extract, Validate, and
// Resolve (§4.3).
package reference

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/deskribe/deskribe/pkg/model"
	"github.com/deskribe/deskribe/pkg/telemetry"
)

// exprPattern matches `@resource(<type>).<property>` where type is
// `[A-Za-z0-9_.]+` and property is `[A-Za-z0-9_]+`. The grammar is
// regular, so no parser-generator dependency is warranted (§9).
var exprPattern = regexp.MustCompile(`@resource\(([A-Za-z0-9_.]+)\)\.([A-Za-z0-9_]+)`)

// Reference is one extracted `@resource(...)` occurrence.
type Reference struct {
	EnvVarName    string
	RawExpression string
	ResourceType  string
	Property      string
}

// Extract scans every value of env and returns each reference occurrence
// in deterministic order: iteration order of env variable names (sorted,
// since map iteration order is not itself deterministic), then
// left-to-right position within each value.
func Extract(env map[string]string) []Reference {
	var out []Reference

	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := env[name]
		matches := exprPattern.FindAllStringSubmatchIndex(value, -1)
		for _, m := range matches {
			raw := value[m[0]:m[1]]
			typ := value[m[2]:m[3]]
			prop := value[m[4]:m[5]]
			out = append(out, Reference{
				EnvVarName:    name,
				RawExpression: raw,
				ResourceType:  typ,
				Property:      prop,
			})
		}
	}
	return out
}

// ValidateAgainstDeclaredTypes checks that every reference's ResourceType
// is a member of declaredTypes. All violations are collected; the
// operation does not short-circuit (§4.3).
func ValidateAgainstDeclaredTypes(refs []Reference, declaredTypes map[string]bool) model.ValidationResult {
	result := model.NewValidationResult()
	for _, r := range refs {
		if !declaredTypes[r.ResourceType] {
			result.AddError(fmt.Sprintf("env var %q references undeclared resource type %q", r.EnvVarName, r.ResourceType))
		}
	}
	return result
}

// Resolve replaces every `@resource(...)` occurrence in every value of env
// using outputs (type -> property -> value). References whose type or
// property is absent from outputs are left verbatim and reported as
// ReferenceUnresolved warnings. Resolve is idempotent: re-running it on
// its own output with the same outputs produces the same result, since
// values with no remaining reference expressions pass through unchanged.
func Resolve(env map[string]string, outputs map[string]map[string]string, logger *telemetry.Logger) (map[string]string, []model.Warning) {
	if logger == nil {
		logger = telemetry.NewDefaultLogger()
	}

	resolved := make(map[string]string, len(env))
	var warnings []model.Warning

	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := env[name]
		var unresolvedInValue bool

		newValue := exprPattern.ReplaceAllStringFunc(value, func(match string) string {
			sub := exprPattern.FindStringSubmatch(match)
			typ, prop := sub[1], sub[2]

			byProp, ok := outputs[typ]
			if !ok {
				unresolvedInValue = true
				return match
			}
			val, ok := byProp[prop]
			if !ok {
				unresolvedInValue = true
				return match
			}
			logger.Redacted("resolved reference", fmt.Sprintf("%s.%s", typ, prop))
			return val
		})

		resolved[name] = newValue
		if unresolvedInValue {
			warnings = append(warnings, model.Warning{
				Kind:    model.ErrorKindReferenceUnresolved,
				Message: "one or more references could not be resolved against backend outputs",
				Subject: name,
			})
		}
	}

	return resolved, warnings
}

// DeclaredTypes returns the set of resource types declared in a manifest,
// for use with ValidateAgainstDeclaredTypes.
func DeclaredTypes(resources []model.Resource) map[string]bool {
	out := make(map[string]bool, len(resources))
	for _, r := range resources {
		out[r.Type] = true
	}
	return out
}
