// Package policy implements §4.4's Policy Validator and its two optional
// extensions from §5.4.
//
// Validator runs the fixed, mandatory checks: manifest name required,
// backend coverage, reference cross-checks, allowedRegions, and the
// secretsStrategy/externalSecretsStore invariant. It has no dependency on
// OPA and always runs.
//
// Engine additionally compiles and evaluates Rego bundles — four
// built-ins (resource-naming, required-labels, region-allowlist,
// tls-enforcement) plus any *.rego files found under an operator-supplied
// --policy-dir — against the same manifest and platform data. It is
// additive: an Engine failure never overrides a passing Validator result
// or vice versa; callers report both.
//
// SchemaRegistry validates individual resources against a JSON Schema
// keyed by resource type, layered on top of the Loader's struct-tag
// validation for the three recognized kinds (postgres, redis,
// kafka.messaging); a type with no registered schema is not an error.
package policy
