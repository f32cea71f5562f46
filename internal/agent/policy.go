package agent

import "github.com/wanderio/concierge/internal/domain"

// Decide is the single authoritative autonomy policy surface. No other
// component may trigger a side-effecting tool call without passing through
// it. Precedence:
//
//  1. Unknown -> DECLINE (with a clarifying reply, never a dropped turn)
//  2. no side effects -> EXECUTE at any level
//  3. side effects with missing slots -> CONFIRM at any level
//  4. side effects, fully specified:
//     MANUAL     -> CONFIRM
//     ASSISTED   -> CONFIRM if payment-bearing, else EXECUTE
//     AUTONOMOUS -> EXECUTE
func Decide(intent *domain.Intent, level domain.AutonomyLevel) domain.Decision {
	if intent == nil || intent.Type == domain.IntentUnknown {
		return domain.DecisionDecline
	}

	if !intent.HasSideEffects() {
		return domain.DecisionExecute
	}

	if !intent.FullySpecified() {
		return domain.DecisionConfirm
	}

	switch level {
	case domain.AutonomyAutonomous:
		return domain.DecisionExecute
	case domain.AutonomyAssisted:
		if intent.PaymentBearing() {
			return domain.DecisionConfirm
		}
		return domain.DecisionExecute
	default: // MANUAL and anything unrecognized stays conservative
		return domain.DecisionConfirm
	}
}
