package dispatch

import (
	"errors"
	"sync"
	"time"

	"github.com/shenikar/truck_dispatch_system/internal/fleet"
	"github.com/shenikar/truck_dispatch_system/internal/geo"
	"github.com/shenikar/truck_dispatch_system/internal/models"
)

// ErrNoAvailableTruck штатная ситуация: свободных машин нет
var ErrNoAvailableTruck = errors.New("no available truck")

// Engine подбирает ближайшую свободную машину для отчета
type Engine struct {
	fleet *fleet.Registry
	now   func() time.Time

	mu      sync.Mutex
	history []models.Assignment
}

// NewEngine создает движок назначения поверх реестра автопарка
func NewEngine(registry *fleet.Registry) *Engine {
	return &Engine{
		fleet: registry,
		now:   time.Now,
	}
}

// Assign выбирает ближайшую по гаверсинусу машину и резервирует ее.
// При равных расстояниях выигрывает лексикографически меньший id.
// Если резерв перехвачен конкурентным вызовом, выбор повторяется по актуальному списку.
func (e *Engine) Assign(report *models.Report) (models.Assignment, error) {
	for {
		candidates := e.fleet.ListAvailable()
		if len(candidates) == 0 {
			return models.Assignment{}, ErrNoAvailableTruck
		}

		best, distance := nearest(candidates, report.Location)
		err := e.fleet.Reserve(best.ID)
		if errors.Is(err, fleet.ErrTruckAlreadyReserved) || errors.Is(err, fleet.ErrTruckNotFound) {
			continue
		}
		if err != nil {
			return models.Assignment{}, err
		}

		assignment := models.Assignment{
			TruckID:    best.ID,
			ReportID:   report.ID,
			DistanceKm: distance,
			AssignedAt: e.now(),
		}
		e.mu.Lock()
		e.history = append(e.history, assignment)
		e.mu.Unlock()
		return assignment, nil
	}
}

// History возвращает копию журнала назначений
func (e *Engine) History() []models.Assignment {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Assignment, len(e.history))
	copy(out, e.history)
	return out
}

// RestoreHistory подгружает журнал назначений из хранилища при старте
func (e *Engine) RestoreHistory(assignments []models.Assignment) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history = make([]models.Assignment, len(assignments))
	copy(e.history, assignments)
}

// Revoke убирает из журнала назначение, которое не удалось сохранить
func (e *Engine) Revoke(a models.Assignment) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := len(e.history) - 1; i >= 0; i-- {
		if e.history[i].ReportID == a.ReportID && e.history[i].TruckID == a.TruckID {
			e.history = append(e.history[:i], e.history[i+1:]...)
			return
		}
	}
}

// LastByTruck возвращает последнее назначение каждой машины
func (e *Engine) LastByTruck() map[string]models.Assignment {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]models.Assignment)
	for _, a := range e.history {
		out[a.TruckID] = a
	}
	return out
}

// ClearHistory очищает журнал назначений
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
}

// nearest ожидает кандидатов, отсортированных по id
func nearest(candidates []models.Truck, to models.Location) (models.Truck, float64) {
	best := candidates[0]
	bestDistance := geo.DistanceKm(best.Location, to)
	for _, c := range candidates[1:] {
		d := geo.DistanceKm(c.Location, to)
		if d < bestDistance || (d == bestDistance && c.ID < best.ID) {
			best, bestDistance = c, d
		}
	}
	return best, bestDistance
}
