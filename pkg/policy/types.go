package policy

import (
	"time"

	"github.com/deskribe/deskribe/pkg/model"
)

// Severity is the severity level of a policy violation.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Policy is one Rego bundle: a built-in, or one loaded from --policy-dir.
type Policy struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Rego        string                 `json:"rego"`
	Severity    Severity               `json:"severity"`
	Enabled     bool                   `json:"enabled"`
	Tags        []string               `json:"tags,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// Input is the data handed to every compiled policy's query. Bundles
// iterate input.resources and read input.platform/input.workload/
// input.context as needed; a bundle that only cares about one of these
// simply ignores the rest.
type Input struct {
	Resources []model.Resource     `json:"resources"`
	Platform  model.PlatformConfig `json:"platform"`
	Workload  *model.WorkloadPlan  `json:"workload,omitempty"`
	Context   *Context             `json:"context"`
}

// Context carries the evaluation point's metadata into Rego input.
type Context struct {
	Environment string    `json:"environment,omitempty"`
	Operation   string    `json:"operation,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	DryRun      bool      `json:"dryRun"`
}
