package contribution

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// Event drives a status change.
type Event string

const (
	AuthorDraft  Event = "author:draft"
	AuthorSubmit Event = "author:submit"
)

// Moderate is a moderator setting the status directly.
func Moderate(to Status) Event { return Event("moderate:" + string(to)) }

// ReviewEvent is a review verdict being applied.
func ReviewEvent(v Verdict) Event { return Event("review:" + string(v)) }

// sameStatus marks events that keep the current status.
const sameStatus Status = ""

// reviewable returns the review events accepted in a state. Only a PENDING
// contribution is promoted by an approving review; elsewhere it keeps its
// status.
func reviewable(onApproved Status) map[Event]Status {
	return map[Event]Status{
		ReviewEvent(VerdictApproved):         onApproved,
		ReviewEvent(VerdictRejected):         StatusRejected,
		ReviewEvent(VerdictChangesRequested): StatusPending,
		ReviewEvent(VerdictCommented):        sameStatus,
	}
}

// transitions is the complete state machine. Anything absent is rejected.
var transitions = map[Status]map[Event]Status{
	StatusDraft: {
		AuthorDraft:             StatusDraft,
		AuthorSubmit:            StatusPending,
		Moderate(StatusPending): StatusPending,
		Moderate(StatusClosed):  StatusClosed,
	},
	StatusPending: merge(reviewable(StatusApproved), map[Event]Status{
		AuthorDraft:                 StatusDraft,
		AuthorSubmit:                StatusPending,
		Moderate(StatusUnderReview): StatusUnderReview,
		Moderate(StatusApproved):    StatusApproved,
		Moderate(StatusRejected):    StatusRejected,
		Moderate(StatusClosed):      StatusClosed,
	}),
	StatusUnderReview: merge(reviewable(sameStatus), map[Event]Status{
		Moderate(StatusPending):  StatusPending,
		Moderate(StatusApproved): StatusApproved,
		Moderate(StatusRejected): StatusRejected,
		Moderate(StatusClosed):   StatusClosed,
	}),
	StatusApproved: merge(reviewable(sameStatus), map[Event]Status{
		Moderate(StatusPending):     StatusPending,
		Moderate(StatusUnderReview): StatusUnderReview,
		Moderate(StatusRejected):    StatusRejected,
		Moderate(StatusMerged):      StatusMerged,
		Moderate(StatusClosed):      StatusClosed,
	}),
	StatusRejected: {
		Moderate(StatusPending): StatusPending,
		Moderate(StatusClosed):  StatusClosed,
	},
	StatusClosed: {
		Moderate(StatusPending): StatusPending,
	},
	StatusMerged: {},
}

// Transition returns the status reached by applying ev in from. A moderator
// setting the current status is a no-op.
func Transition(from Status, ev Event) (Status, error) {
	if ev == Moderate(from) {
		return from, nil
	}
	to, ok := transitions[from][ev]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
	}
	if to == sameStatus {
		return from, nil
	}
	return to, nil
}

func merge(base, extra map[Event]Status) map[Event]Status {
	out := make(map[Event]Status, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
