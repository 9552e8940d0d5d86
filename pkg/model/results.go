package model

// Warning is a non-fatal finding surfaced alongside a command's result.
// Kind is a taxonomy value from errors.go, for example ConfigMissing for a
// missing environment overlay or ProviderValidation for a provider finding.
type Warning struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Subject string    `json:"subject,omitempty"`
}

// ValidationResult is the aggregate outcome of Validate() and of the
// Policy Validator's own pass.
type ValidationResult struct {
	IsValid  bool      `json:"isValid"`
	Errors   []string  `json:"errors,omitempty"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// AddError records a fatal finding and flips IsValid to false.
func (v *ValidationResult) AddError(msg string) {
	v.Errors = append(v.Errors, msg)
	v.IsValid = false
}

// AddWarning records a non-fatal finding without affecting IsValid.
func (v *ValidationResult) AddWarning(kind ErrorKind, msg, subject string) {
	v.Warnings = append(v.Warnings, Warning{Kind: kind, Message: msg, Subject: subject})
}

// Merge folds another ValidationResult's errors and warnings into this one.
func (v *ValidationResult) Merge(other ValidationResult) {
	v.Errors = append(v.Errors, other.Errors...)
	v.Warnings = append(v.Warnings, other.Warnings...)
	if !other.IsValid {
		v.IsValid = false
	}
}

// NewValidationResult returns a ValidationResult that starts valid; the
// first AddError flips it.
func NewValidationResult() ValidationResult {
	return ValidationResult{IsValid: true}
}

// PolicyResult is the Policy Validator's own aggregate, kept distinct from
// ValidationResult because policy evaluation also carries OPA-sourced
// structured violations in addition to plain error/warning strings.
type PolicyResult struct {
	IsValid    bool               `json:"isValid"`
	Errors     []string           `json:"errors,omitempty"`
	Warnings   []Warning          `json:"warnings,omitempty"`
	Violations []PolicyViolation  `json:"violations,omitempty"`
}

// PolicyViolation is one finding from an evaluated Rego policy bundle.
type PolicyViolation struct {
	Policy   string `json:"policy"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Resource string `json:"resource,omitempty"`
}

// ResourceContext is the read-only bundle of surrounding configuration
// passed to ResourceProvider.Validate.
type ResourceContext struct {
	Platform PlatformConfig
	Env      EnvironmentConfig
}

// PlanContext is the read-only bundle of surrounding configuration passed
// to ResourceProvider.Plan.
type PlanContext struct {
	Platform    PlatformConfig
	EnvConfig   EnvironmentConfig
	Env         map[string]string
	AppName     string
}
