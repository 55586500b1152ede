package fleet

import (
	"errors"
	"sort"
	"sync"

	"github.com/shenikar/truck_dispatch_system/internal/models"
)

var (
	ErrTruckNotFound        = errors.New("truck not found")
	ErrTruckAlreadyReserved = errors.New("truck already reserved")
)

// Registry хранит автопарк и флаг доступности каждой машины.
// Все операции сериализованы одним мьютексом.
type Registry struct {
	mu       sync.Mutex
	defaults []models.Truck
	trucks   map[string]*models.Truck
}

// NewRegistry создает реестр из исходной конфигурации автопарка
func NewRegistry(defaults []models.Truck) *Registry {
	r := &Registry{
		defaults: make([]models.Truck, len(defaults)),
	}
	copy(r.defaults, defaults)
	r.resetLocked()
	return r
}

// ListAvailable возвращает все свободные машины, отсортированные по id
func (r *Registry) ListAvailable() []models.Truck {
	r.mu.Lock()
	defer r.mu.Unlock()

	available := make([]models.Truck, 0, len(r.trucks))
	for _, t := range r.trucks {
		if t.Available {
			available = append(available, *t)
		}
	}
	sortByID(available)
	return available
}

// List возвращает все машины
func (r *Registry) List() []models.Truck {
	r.mu.Lock()
	defer r.mu.Unlock()

	trucks := make([]models.Truck, 0, len(r.trucks))
	for _, t := range r.trucks {
		trucks = append(trucks, *t)
	}
	sortByID(trucks)
	return trucks
}

// Get возвращает машину по id
func (r *Registry) Get(id string) (models.Truck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trucks[id]
	if !ok {
		return models.Truck{}, ErrTruckNotFound
	}
	return *t, nil
}

// Reserve атомарно помечает машину занятой
func (r *Registry) Reserve(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trucks[id]
	if !ok {
		return ErrTruckNotFound
	}
	if !t.Available {
		return ErrTruckAlreadyReserved
	}
	t.Available = false
	return nil
}

// Release возвращает машину в число свободных
func (r *Registry) Release(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trucks[id]
	if !ok {
		return ErrTruckNotFound
	}
	t.Available = true
	return nil
}

// ResetToDefaults восстанавливает исходный автопарк и снимает все резервы
func (r *Registry) ResetToDefaults() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
}

// Restore применяет сохраненный снимок состояния машин.
// Машины, отсутствующие в конфигурации, игнорируются: автопарк задается конфигом.
func (r *Registry) Restore(snapshot []models.Truck) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range snapshot {
		t, ok := r.trucks[s.ID]
		if !ok {
			continue
		}
		t.Location = s.Location
		t.Available = s.Available
	}
}

func (r *Registry) resetLocked() {
	r.trucks = make(map[string]*models.Truck, len(r.defaults))
	for _, d := range r.defaults {
		t := d
		t.Available = true
		r.trucks[t.ID] = &t
	}
}

func sortByID(trucks []models.Truck) {
	sort.Slice(trucks, func(i, j int) bool { return trucks[i].ID < trucks[j].ID })
}
