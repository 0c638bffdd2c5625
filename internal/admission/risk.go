package admission

// Verdict is the result of a non-blocking risk-cache lookup (spec.md §4.1
// check #8). A miss and an explicit denial are both rejections but surface
// distinct reject reasons; spec.md §9's Open Question leaves the choice
// between RiskUnavailable and InsufficientFunds to the Checker
// implementation rather than the pipeline.
type Verdict int

const (
	// VerdictMiss means no cached verdict was found (or the lookup itself
	// failed) -> RejectReason RiskUnavailable.
	VerdictMiss Verdict = iota
	// VerdictApproved means the account has sufficient funds/exposure.
	VerdictApproved
	// VerdictDenied means the risk cache holds a cached negative verdict
	// -> RejectReason InsufficientFunds.
	VerdictDenied
)

// Checker is a non-blocking risk-cache lookup. Implementations must not
// block the calling tick; a real implementation looks up a value already
// computed asynchronously and cached, never performs synchronous I/O here
// (spec.md §1 Non-goals: no synchronous I/O from the engine).
type Checker interface {
	Check(accountID string, qty uint64) Verdict
}

// AlwaysApprove is a Checker that approves every account; useful where no
// risk service is wired (tests, cold-start harnesses).
type AlwaysApprove struct{}

func (AlwaysApprove) Check(accountID string, qty uint64) Verdict { return VerdictApproved }
