package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReporterID идентификатор отправителя: строка или число (id пользователя Telegram)
type ReporterID string

func (r *ReporterID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = ReporterID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("reporter id must be a string or a number: %w", err)
	}
	*r = ReporterID(n.String())
	return nil
}

// CreateReportRequest DTO для создания отчета об инциденте
// @Description DTO для создания отчета об инциденте
type CreateReportRequest struct {
	ReporterID  ReporterID `json:"reporter_id" validate:"required,max=255" swaggertype:"string"`
	Coordinates []float64  `json:"coordinates" validate:"required,len=2"`
	Severity    int        `json:"severity" validate:"required,min=1,max=10"`
}

// CreateReportResponse DTO ответа на создание отчета
// @Description DTO ответа на создание отчета
type CreateReportResponse struct {
	ID uuid.UUID `json:"id"`
}

// ReportResponse DTO для ответа с информацией об отчете
// @Description DTO для ответа с информацией об отчете
type ReportResponse struct {
	ID              uuid.UUID  `json:"id"`
	ReporterID      string     `json:"reporter_id"`
	Coordinates     [2]float64 `json:"coordinates"`
	Severity        int        `json:"severity"`
	Status          string     `json:"status"`
	AssignedTruckID *string    `json:"assigned_truck_id"`
	ETA             *time.Time `json:"eta"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	Notified        bool       `json:"notified"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TruckResponse DTO для ответа с состоянием машины
// @Description DTO для ответа с состоянием машины
type TruckResponse struct {
	TruckID          string     `json:"truck_id"`
	Coordinates      [2]float64 `json:"coordinates"`
	Available        bool       `json:"available"`
	AssignedReportID *uuid.UUID `json:"assigned_report_id"`
}

// AssignmentResponse DTO записи журнала назначений
// @Description DTO записи журнала назначений
type AssignmentResponse struct {
	TruckID    string    `json:"truck_id"`
	ReportID   uuid.UUID `json:"report_id"`
	DistanceKm float64   `json:"distance_km"`
	AssignedAt time.Time `json:"assigned_at"`
}

// LegacyReportRequest тело запроса /newReport в формате чат-бота
type LegacyReportRequest struct {
	UserID      ReporterID `json:"user_id" validate:"required" swaggertype:"string"`
	Coordinates []float64  `json:"coordinates" validate:"required,len=2"`
	Severity    int        `json:"severity"`
}

// LegacyReportResponse отчет в формате чат-бота
type LegacyReportResponse struct {
	UserID        string     `json:"user_id"`
	Coordinates   [2]float64 `json:"coordinates"`
	Severity      int        `json:"severity"`
	Hash          uuid.UUID  `json:"hash"`
	Timestamp     time.Time  `json:"timestamp"`
	Status        string     `json:"status"`
	Processed     bool       `json:"processed"`
	TruckAssigned *string    `json:"truck_assigned"`
	ETA           *time.Time `json:"ETA"`
}

// LegacyTruckResponse машина в формате чат-бота
type LegacyTruckResponse struct {
	LicensePlate string     `json:"license_plate"`
	Coordinates  [2]float64 `json:"coordinates"`
	Available    bool       `json:"available"`
	AssignedHash *uuid.UUID `json:"assigned_hash"`
}

// LegacyUpdateRequest подтверждение доставки уведомления от чат-бота
type LegacyUpdateRequest struct {
	Hash      string `json:"hash" validate:"required,uuid"`
	Processed bool   `json:"processed"`
}
