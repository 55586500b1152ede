package queue

import (
	"container/heap"
	"sync"

	"github.com/google/uuid"
	"github.com/shenikar/truck_dispatch_system/internal/models"
)

// DefaultCapacity емкость очереди по умолчанию
const DefaultCapacity = 100

type entry struct {
	report *models.Report
	seq    uint64
	maxIdx int
	minIdx int
}

// higher сообщает, обслуживается ли a раньше b:
// приоритет по убыванию, затем более раннее время создания, затем порядок вставки.
func higher(a, b *entry) bool {
	if a.report.Severity != b.report.Severity {
		return a.report.Severity > b.report.Severity
	}
	if !a.report.CreatedAt.Equal(b.report.CreatedAt) {
		return a.report.CreatedAt.Before(b.report.CreatedAt)
	}
	return a.seq < b.seq
}

type maxHeap []*entry

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return higher(h[i], h[j]) }
func (h maxHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].maxIdx = i
	h[j].maxIdx = j
}
func (h *maxHeap) Push(x any) {
	e := x.(*entry)
	e.maxIdx = len(*h)
	*h = append(*h, e)
}
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

type minHeap []*entry

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return higher(h[j], h[i]) }
func (h minHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].minIdx = i
	h[j].minIdx = j
}
func (h *minHeap) Push(x any) {
	e := x.(*entry)
	e.minIdx = len(*h)
	*h = append(*h, e)
}
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Queue ограниченная приоритетная очередь отчетов, ожидающих назначения.
// При переполнении вытесняется запись с наименьшим приоритетом (включая только что добавленную).
type Queue struct {
	mu       sync.Mutex
	capacity int
	seq      uint64
	max      maxHeap
	min      minHeap
	byID     map[uuid.UUID]*entry
}

// New создает очередь заданной емкости
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		capacity: capacity,
		byID:     make(map[uuid.UUID]*entry),
	}
}

// Push добавляет отчет и возвращает вытесненный отчет, если очередь переполнилась.
// Повторное добавление отчета с тем же id игнорируется.
func (q *Queue) Push(report *models.Report) (evicted *models.Report) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.byID[report.ID]; ok {
		return nil
	}

	q.seq++
	e := &entry{report: report, seq: q.seq}
	heap.Push(&q.max, e)
	heap.Push(&q.min, e)
	q.byID[report.ID] = e

	if len(q.max) <= q.capacity {
		return nil
	}

	lowest := heap.Pop(&q.min).(*entry)
	heap.Remove(&q.max, lowest.maxIdx)
	delete(q.byID, lowest.report.ID)
	return lowest.report
}

// Pop извлекает отчет с наивысшим приоритетом
func (q *Queue) Pop() (*models.Report, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.max) == 0 {
		return nil, false
	}
	top := heap.Pop(&q.max).(*entry)
	heap.Remove(&q.min, top.minIdx)
	delete(q.byID, top.report.ID)
	return top.report, true
}

// Len количество записей в очереди
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.max)
}

// IsEmpty сообщает, пуста ли очередь
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Contains сообщает, находится ли отчет в очереди
func (q *Queue) Contains(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byID[id]
	return ok
}

// Clear удаляет все записи
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.max = nil
	q.min = nil
	q.byID = make(map[uuid.UUID]*entry)
}
