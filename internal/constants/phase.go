package constants

// Phase represents the state of a pipeline run in the Crucible state machine.
// Phases move forward through the lifecycle, or loop within the bounded
// development cycle; they never skip the validation phase.
type Phase string

// Pipeline phases.
const (
	// PhaseInit is the initial phase before the environment is prepared.
	PhaseInit Phase = "init"

	// PhaseEnvReady indicates the environment collaborator reported success.
	PhaseEnvReady Phase = "env_ready"

	// PhaseDefined indicates a confirmed project intent has been captured.
	PhaseDefined Phase = "defined"

	// PhaseArchitecting is the architecture design stage.
	PhaseArchitecting Phase = "architecting"

	// PhaseImplementing is the code generation stage. Revision loops re-enter here.
	PhaseImplementing Phase = "implementing"

	// PhaseStandardsCheck runs the formatter, linter, and type-checker tools.
	PhaseStandardsCheck Phase = "standards_check"

	// PhaseTesting runs the test-runner tool against the working tree.
	PhaseTesting Phase = "testing"

	// PhaseDocumenting is the documentation generation stage.
	PhaseDocumenting Phase = "documenting"

	// PhaseSecurityReview is the security and ethics review stage.
	PhaseSecurityReview Phase = "security_review"

	// PhaseValidating is the final validation stage before approval.
	PhaseValidating Phase = "validating"

	// PhaseApproved indicates the validator approved the artifact for delivery.
	PhaseApproved Phase = "approved"

	// PhaseDelivering indicates the dispatcher is packaging the artifact.
	PhaseDelivering Phase = "delivering"

	// PhaseDelivered is the terminal success phase.
	PhaseDelivered Phase = "delivered"

	// PhaseFailed is the terminal failure phase.
	PhaseFailed Phase = "failed"
)

// String returns the string representation of the Phase.
func (p Phase) String() string {
	return string(p)
}

// Stage identifies one discrete, verifiable step of the development cycle.
type Stage string

// Development cycle stages, in execution order.
const (
	StageArchitecture   Stage = "architecture"
	StageImplementation Stage = "implementation"
	StageStandards      Stage = "standards"
	StageTesting        Stage = "testing"
	StageDocumentation  Stage = "documentation"
	StageSecurity       Stage = "security"
	StageValidation     Stage = "validation"
)

// String returns the string representation of the Stage.
func (s Stage) String() string {
	return string(s)
}

// DevelopmentStages returns the development cycle stages in execution order,
// ending with the validation stage. The orchestrator iterates this slice;
// it is the single source of stage ordering.
func DevelopmentStages() []Stage {
	return []Stage{
		StageArchitecture,
		StageImplementation,
		StageStandards,
		StageTesting,
		StageDocumentation,
		StageSecurity,
		StageValidation,
	}
}

// VerdictStatus is the outcome of a stage run.
type VerdictStatus string

// Verdict statuses.
const (
	// VerdictPass indicates the stage completed and its checks passed.
	VerdictPass VerdictStatus = "pass"

	// VerdictFail indicates a non-recoverable stage failure (tool crash,
	// malformed artifact). The orchestrator rolls back to the last-good
	// snapshot and consumes one retry unit.
	VerdictFail VerdictStatus = "fail"

	// VerdictNeedsRevision indicates the stage completed but the artifact
	// requires another implementation pass. No rollback occurs.
	VerdictNeedsRevision VerdictStatus = "needs_revision"
)

// String returns the string representation of the VerdictStatus.
func (v VerdictStatus) String() string {
	return string(v)
}

// DeliveryMethod selects one of the three packaging collaborators.
type DeliveryMethod string

// Delivery methods.
const (
	DeliveryGitHub     DeliveryMethod = "github"
	DeliveryExecutable DeliveryMethod = "executable"
	DeliverySource     DeliveryMethod = "source"
)

// ValidDeliveryMethods returns all accepted delivery methods.
func ValidDeliveryMethods() []DeliveryMethod {
	return []DeliveryMethod{DeliveryGitHub, DeliveryExecutable, DeliverySource}
}

// IsValidDeliveryMethod reports whether m names a known delivery method.
func IsValidDeliveryMethod(m DeliveryMethod) bool {
	switch m {
	case DeliveryGitHub, DeliveryExecutable, DeliverySource:
		return true
	}
	return false
}
