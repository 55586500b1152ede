package dispatch

import (
	"context"
	"testing"

	"github.com/shenikar/truck_dispatch_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_ForwardPath(t *testing.T) {
	ctx := context.Background()
	r := &models.Report{Status: models.StatusPending}

	require.NoError(t, Transition(ctx, r, EventAssign))
	assert.Equal(t, models.StatusAssigned, r.Status)

	require.NoError(t, Transition(ctx, r, EventResolve))
	assert.Equal(t, models.StatusResolved, r.Status)
}

func TestTransition_Rejected(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		status models.ReportStatus
		event  string
	}{
		{"resolve pending", models.StatusPending, EventResolve},
		{"assign assigned", models.StatusAssigned, EventAssign},
		{"assign resolved", models.StatusResolved, EventAssign},
		{"resolve resolved", models.StatusResolved, EventResolve},
		{"unknown event", models.StatusPending, "reopen"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &models.Report{Status: tc.status}
			err := Transition(ctx, r, tc.event)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tc.status, r.Status)
		})
	}
}
