package onboarding

import (
	"fmt"

	"github.com/uncleJim21/pullthatupjamie/internal/backend"
)

// Kind tags which variant a State holds.
type Kind int

const (
	KindIdle Kind = iota
	KindAwaitingAuth
	KindAwaitingCheckout
	KindProcessing
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindAwaitingAuth:
		return "awaiting-auth"
	case KindAwaitingCheckout:
		return "awaiting-checkout"
	case KindProcessing:
		return "processing"
	case KindDone:
		return "done"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// State is the onboarding state. Only the fields belonging to Kind are set;
// use the constructors rather than building one by hand.
type State struct {
	Kind Kind

	// AwaitingAuth
	UpgradeIntent bool
	// AwaitingCheckout; also carried by AwaitingAuth when UpgradeIntent is set
	TargetPlan backend.Plan
	// Processing
	JobID string
	// Done
	JustUpgraded bool
}

func Idle() State { return State{Kind: KindIdle} }

// AwaitingAuth opens the sign-in/sign-up modal. plan is where an upgrading user
// goes after auth; it is ignored unless upgradeIntent is set.
func AwaitingAuth(upgradeIntent bool, plan backend.Plan) State {
	s := State{Kind: KindAwaitingAuth, UpgradeIntent: upgradeIntent}
	if upgradeIntent {
		s.TargetPlan = plan
	}
	return s
}

func AwaitingCheckout(plan backend.Plan) State {
	return State{Kind: KindAwaitingCheckout, TargetPlan: plan}
}

func Processing(jobID string) State { return State{Kind: KindProcessing, JobID: jobID} }

func Done(justUpgraded bool) State { return State{Kind: KindDone, JustUpgraded: justUpgraded} }

// Recovering reports whether a recovery modal is open.
func (s State) Recovering() bool {
	return s.Kind == KindAwaitingAuth || s.Kind == KindAwaitingCheckout
}

func (s State) String() string {
	switch s.Kind {
	case KindAwaitingAuth:
		return fmt.Sprintf("awaiting-auth{upgradeIntent:%t}", s.UpgradeIntent)
	case KindAwaitingCheckout:
		return fmt.Sprintf("awaiting-checkout{targetPlan:%s}", s.TargetPlan)
	case KindProcessing:
		return fmt.Sprintf("processing{job:%s}", s.JobID)
	case KindDone:
		return fmt.Sprintf("done{justUpgraded:%t}", s.JustUpgraded)
	default:
		return s.Kind.String()
	}
}
