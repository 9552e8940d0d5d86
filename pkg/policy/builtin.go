package policy

import (
	"time"
)

// GetBuiltinPolicies returns the built-in Rego bundles (§5.4): the
// fixed checks of §4.4 already run without OPA (pkg/policy.Validator);
// these are the additional, org-wide bundles layered on top.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		resourceNamingPolicy(),
		requiredLabelsPolicy(),
		regionAllowlistPolicy(),
		tlsEnforcementPolicy(),
	}
}

func resourceNamingPolicy() Policy {
	now := time.Now()
	return Policy{
		Name:        "resource-naming",
		Description: "Enforces the resource type tag naming convention (lowercase, dot- and hyphen-separated)",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming"},
		CreatedAt:   now,
		UpdatedAt:   now,
		Rego: `package deskribe.policies.naming

import rego.v1

deny contains violation if {
	some r in input.resources
	lower(r.type) != r.type
	violation := {
		"message": sprintf("resource type %q must be lowercase", [r.type]),
		"severity": "error",
		"resource": r.type,
	}
}

deny contains violation if {
	some r in input.resources
	not regex.match("^[a-z0-9]+([.-][a-z0-9]+)*$", r.type)
	violation := {
		"message": sprintf("resource type %q must contain only lowercase letters, digits, '.' and '-'", [r.type]),
		"severity": "error",
		"resource": r.type,
	}
}`,
	}
}

func requiredLabelsPolicy() Policy {
	now := time.Now()
	return Policy{
		Name:        "required-labels",
		Description: "Ensures the owner label is present on every declared resource",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"labels"},
		CreatedAt:   now,
		UpdatedAt:   now,
		Rego: `package deskribe.policies.labels

import rego.v1

deny contains violation if {
	some r in input.resources
	not r.labels.owner
	violation := {
		"message": sprintf("resource %q is missing the owner label", [r.type]),
		"severity": "warning",
		"resource": r.type,
	}
}

deny contains violation if {
	some r in input.resources
	r.labels.owner == ""
	violation := {
		"message": sprintf("resource %q has an empty owner label", [r.type]),
		"severity": "warning",
		"resource": r.type,
	}
}`,
	}
}

// regionAllowlistPolicy is the Rego-bundle counterpart of the
// allowedRegions check the fixed Validator already runs (§4.4); kept
// here too so a platform team can express the same constraint, and
// variations on it, without a Go code change.
func regionAllowlistPolicy() Policy {
	now := time.Now()
	return Policy{
		Name:        "region-allowlist",
		Description: "Blocks plans targeting a platform region outside policies.allowedRegions",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"region"},
		CreatedAt:   now,
		UpdatedAt:   now,
		Rego: `package deskribe.policies.region

import rego.v1

deny contains violation if {
	count(input.platform.policies.allowedRegions) > 0
	not input.platform.defaults.region in input.platform.policies.allowedRegions
	violation := {
		"message": sprintf("region %q is not in policies.allowedRegions", [input.platform.defaults.region]),
		"severity": "error",
		"resource": "",
	}
}`,
	}
}

// tlsEnforcementPolicy requires every resource's raw provider config to
// declare tls: true when the platform has policies.enforceTls set.
func tlsEnforcementPolicy() Policy {
	now := time.Now()
	return Policy{
		Name:        "tls-enforcement",
		Description: "When policies.enforceTls is set, every resource's provider config must set tls: true",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"tls"},
		CreatedAt:   now,
		UpdatedAt:   now,
		Rego: `package deskribe.policies.tls

import rego.v1

deny contains violation if {
	input.platform.policies.enforceTls == true
	some r in input.resources
	not r.config.tls == true
	violation := {
		"message": sprintf("resource %q must set tls: true in its provider config when enforceTls is on", [r.type]),
		"severity": "error",
		"resource": r.type,
	}
}`,
	}
}
