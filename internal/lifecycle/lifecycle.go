// Package lifecycle holds the service-request state machine. Every status
// change goes through Apply.
package lifecycle

import (
	"translink/internal/domain"
	"translink/internal/models"
)

// State is the pair of status axes.
type State struct {
	Request models.RequestStatus
	Booking models.BookingStatus
}

// Action names a status change requested through Apply.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionEdit     Action = "edit"
	ActionPay      Action = "pay"
	ActionComplete Action = "complete"
)

type transition struct {
	from    State
	to      State
	refusal string
}

var (
	pending    = State{models.RequestPending, models.BookingNotStarted}
	unpaid     = State{models.RequestApproved, models.BookingUnpaid}
	inProgress = State{models.RequestApproved, models.BookingInProgress}
)

var table = map[Action]transition{
	ActionApprove: {
		from:    pending,
		to:      unpaid,
		refusal: "only pending requests can be approved",
	},
	ActionReject: {
		from:    pending,
		to:      State{models.RequestRejected, models.BookingNotStarted},
		refusal: "only pending requests can be rejected",
	},
	ActionCancel: {
		from:    pending,
		to:      State{models.RequestCancelled, models.BookingCancelled},
		refusal: "only pending requests can be cancelled",
	},
	ActionEdit: {
		from:    pending,
		to:      pending,
		refusal: "only pending requests can be updated",
	},
	ActionPay: {
		from:    unpaid,
		to:      inProgress,
		refusal: "only approved unpaid bookings can be paid",
	},
	ActionComplete: {
		from:    inProgress,
		to:      State{models.RequestApproved, models.BookingCompleted},
		refusal: "only in-progress bookings can be completed",
	},
}

// Initial is the state of a freshly created request.
func Initial() State {
	return pending
}

// Of returns the current state of req.
func Of(req *models.ServiceRequest) State {
	return State{Request: req.RequestStatus, Booking: req.BookingStatus}
}

// Apply returns the target state of action from s, or a Conflict error when
// the action is not allowed there.
func Apply(s State, action Action) (State, error) {
	t, ok := table[action]
	if !ok {
		return s, domain.Validation("unknown action %q", action)
	}
	if s != t.from {
		return s, domain.Conflict("%s", t.refusal)
	}
	return t.to, nil
}

// Can reports whether action is allowed from s.
func Can(s State, action Action) bool {
	_, err := Apply(s, action)
	return err == nil
}
