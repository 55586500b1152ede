package models

import (
	"time"

	"github.com/google/uuid"
)

// Truck машина экстренной службы
type Truck struct {
	ID        string   `json:"id"`
	Location  Location `json:"location"`
	Available bool     `json:"available"`
}

// Assignment запись о назначении машины на инцидент
type Assignment struct {
	TruckID    string    `json:"truck_id"`
	ReportID   uuid.UUID `json:"report_id"`
	DistanceKm float64   `json:"distance_km"`
	AssignedAt time.Time `json:"assigned_at"`
}

// TruckState представление машины для управления автопарком
type TruckState struct {
	Truck
	AssignedReportID *uuid.UUID `json:"assigned_report_id"`
}
