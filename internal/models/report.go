package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	MinSeverity = 1
	MaxSeverity = 10
)

var (
	ErrInvalidSeverity    = errors.New("severity must be between 1 and 10")
	ErrInvalidCoordinates = errors.New("coordinates must be a valid latitude and longitude")
	ErrReportNotFound     = errors.New("report not found")
)

// ReportStatus статус обработки сообщения об инциденте
type ReportStatus string

const (
	StatusPending  ReportStatus = "pending"
	StatusAssigned ReportStatus = "assigned"
	StatusResolved ReportStatus = "resolved"
)

// Location точка в градусах WGS84
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate проверяет диапазоны широты и долготы
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Report сообщение об инциденте, поступившее от пользователя.
// AssignedTruckID и ETA заполнены тогда и только тогда, когда статус не pending.
type Report struct {
	ID              uuid.UUID    `json:"id"`
	ReporterID      string       `json:"reporter_id"`
	Location        Location     `json:"location"`
	Severity        int          `json:"severity"`
	Status          ReportStatus `json:"status"`
	AssignedTruckID *string      `json:"assigned_truck_id"`
	ETA             *time.Time   `json:"eta"`
	AssignedAt      *time.Time   `json:"assigned_at,omitempty"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`
	Notified        bool         `json:"notified"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// ReportMutation изменение отчета, выполняемое хранилищем атомарно.
// Assignment и Trucks, если заданы, записываются в той же транзакции.
type ReportMutation struct {
	Apply      func(r *Report) error
	Assignment *Assignment
	Trucks     []Truck
}

// ValidateSeverity проверяет, что приоритет лежит в допустимом диапазоне
func ValidateSeverity(severity int) error {
	if severity < MinSeverity || severity > MaxSeverity {
		return ErrInvalidSeverity
	}
	return nil
}

// Clone возвращает глубокую копию отчета
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	c := *r
	if r.AssignedTruckID != nil {
		id := *r.AssignedTruckID
		c.AssignedTruckID = &id
	}
	c.ETA = cloneTime(r.ETA)
	c.AssignedAt = cloneTime(r.AssignedAt)
	c.ResolvedAt = cloneTime(r.ResolvedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
