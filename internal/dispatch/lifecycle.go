package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/shenikar/truck_dispatch_system/internal/models"
)

const (
	EventAssign  = "assign"
	EventResolve = "resolve"
)

var ErrInvalidTransition = errors.New("invalid report status transition")

var reportEvents = fsm.Events{
	{Name: EventAssign, Src: []string{string(models.StatusPending)}, Dst: string(models.StatusAssigned)},
	{Name: EventResolve, Src: []string{string(models.StatusAssigned)}, Dst: string(models.StatusResolved)},
}

// Transition применяет событие жизненного цикла к статусу отчета.
// Обратных переходов нет: pending -> assigned -> resolved.
func Transition(ctx context.Context, report *models.Report, event string) error {
	machine := fsm.NewFSM(string(report.Status), reportEvents, fsm.Callbacks{})
	if err := machine.Event(ctx, event); err != nil {
		return fmt.Errorf("%w: %s from %s: %v", ErrInvalidTransition, event, report.Status, err)
	}
	report.Status = models.ReportStatus(machine.Current())
	return nil
}
