// Package onboarding implements the quota recovery state machine.
//
// # States
//
// A Machine is always in exactly one State:
//
//   - Idle: nothing open
//   - AwaitingAuth{UpgradeIntent}: sign-in/sign-up modal open
//   - AwaitingCheckout{TargetPlan}: checkout modal open
//   - Processing{JobID}: an on-demand job is running
//   - Done{JustUpgraded}: recovery finished, confirmation showing
//
// # Routing
//
// Signal picks the recovery path from the tier in the quota record:
//
//	anonymous             -> AwaitingAuth{false}
//	registered            -> AwaitingCheckout{plus} or AwaitingAuth{true} when signed out
//	subscriber            -> AwaitingCheckout{pro}  or AwaitingAuth{true} when signed out
//	admin                 -> logged, stays Idle
//
// The plan chosen here is the one checkout uses after sign-in, whatever the
// session looks like by then.
//
// # Completion and Replay
//
// CompleteAuth and CompleteCheckout mark the machine in flight, run the
// Refresher without holding the lock, commit the next state and clear the
// flag. Cancel is ignored while the flag is set, so a modal closing because
// of success is never read as the user backing out.
//
// Entering Done hands the PendingAction to the Replayer exactly once, after the
// state is committed. The Body bytes are the ones captured when the quota
// signal arrived.
//
// # Analytics
//
// Signal also raises a Prompt. PromptShown emits quota_modal_shown at most
// once per activation; AcceptPrompt, DismissPrompt or Cancel emit a single
// quota_modal_action.
package onboarding
