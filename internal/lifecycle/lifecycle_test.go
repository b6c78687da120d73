package lifecycle

import (
	"errors"
	"testing"

	"translink/internal/domain"
	"translink/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_Allowed(t *testing.T) {
	cases := []struct {
		name   string
		from   State
		action Action
		want   State
	}{
		{"approve", Initial(), ActionApprove, State{models.RequestApproved, models.BookingUnpaid}},
		{"reject", Initial(), ActionReject, State{models.RequestRejected, models.BookingNotStarted}},
		{"cancel", Initial(), ActionCancel, State{models.RequestCancelled, models.BookingCancelled}},
		{"edit", Initial(), ActionEdit, Initial()},
		{"pay", State{models.RequestApproved, models.BookingUnpaid}, ActionPay, State{models.RequestApproved, models.BookingInProgress}},
		{"complete", State{models.RequestApproved, models.BookingInProgress}, ActionComplete, State{models.RequestApproved, models.BookingCompleted}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Apply(tc.from, tc.action)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestApply_Refused(t *testing.T) {
	approved := State{models.RequestApproved, models.BookingUnpaid}
	rejected := State{models.RequestRejected, models.BookingNotStarted}
	cancelled := State{models.RequestCancelled, models.BookingCancelled}
	completed := State{models.RequestApproved, models.BookingCompleted}

	cases := []struct {
		from    State
		action  Action
		message string
	}{
		{approved, ActionApprove, "only pending requests can be approved"},
		{rejected, ActionApprove, "only pending requests can be approved"},
		{cancelled, ActionReject, "only pending requests can be rejected"},
		{approved, ActionCancel, "only pending requests can be cancelled"},
		{completed, ActionEdit, "only pending requests can be updated"},
		{Initial(), ActionPay, "only approved unpaid bookings can be paid"},
		{approved, ActionComplete, "only in-progress bookings can be completed"},
		{completed, ActionComplete, "only in-progress bookings can be completed"},
	}

	for _, tc := range cases {
		got, err := Apply(tc.from, tc.action)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrConflict))
		assert.Equal(t, tc.message, err.Error())
		assert.Equal(t, tc.from, got, "refused transition must leave state unchanged")
	}
}

func TestApply_Unknown(t *testing.T) {
	_, err := Apply(Initial(), Action("reopen"))
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestApply_RequestStatusNeverReturnsToPending(t *testing.T) {
	actions := []Action{ActionApprove, ActionReject, ActionCancel, ActionPay, ActionComplete}
	for _, a := range actions {
		next, err := Apply(Initial(), a)
		if err != nil {
			continue
		}
		for _, b := range actions {
			after, err := Apply(next, b)
			if err != nil {
				continue
			}
			assert.NotEqual(t, models.RequestPending, after.Request, "%s then %s", a, b)
		}
	}
}

func TestOfAndCan(t *testing.T) {
	req := &models.ServiceRequest{RequestStatus: models.RequestApproved, BookingStatus: models.BookingUnpaid}
	assert.True(t, Can(Of(req), ActionPay))
	assert.False(t, Can(Of(req), ActionApprove))
}
