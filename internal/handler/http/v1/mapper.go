package v1

import (
	"github.com/google/uuid"
	"github.com/shenikar/truck_dispatch_system/internal/models"
)

// DTOToReportModel преобразует DTO создания в доменную модель
func DTOToReportModel(dto CreateReportRequest) *models.Report {
	return &models.Report{
		ReporterID: string(dto.ReporterID),
		Location:   coordinatesToLocation(dto.Coordinates),
		Severity:   dto.Severity,
	}
}

// LegacyDTOToReportModel преобразует запрос чат-бота в доменную модель
func LegacyDTOToReportModel(dto LegacyReportRequest) *models.Report {
	return &models.Report{
		ReporterID: string(dto.UserID),
		Location:   coordinatesToLocation(dto.Coordinates),
		Severity:   dto.Severity,
	}
}

// ModelToReportResponse преобразует доменную модель в DTO для ответа
func ModelToReportResponse(model *models.Report) *ReportResponse {
	return &ReportResponse{
		ID:              model.ID,
		ReporterID:      model.ReporterID,
		Coordinates:     locationToCoordinates(model.Location),
		Severity:        model.Severity,
		Status:          string(model.Status),
		AssignedTruckID: model.AssignedTruckID,
		ETA:             model.ETA,
		AssignedAt:      model.AssignedAt,
		ResolvedAt:      model.ResolvedAt,
		Notified:        model.Notified,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

// ModelsToReportMap преобразует отчеты в словарь id -> DTO
func ModelsToReportMap(reports map[uuid.UUID]*models.Report) map[string]*ReportResponse {
	out := make(map[string]*ReportResponse, len(reports))
	for id, r := range reports {
		out[id.String()] = ModelToReportResponse(r)
	}
	return out
}

// TruckStatesToResponses преобразует состояния машин в DTO
func TruckStatesToResponses(states []models.TruckState) []*TruckResponse {
	responses := make([]*TruckResponse, len(states))
	for i, s := range states {
		responses[i] = &TruckResponse{
			TruckID:          s.ID,
			Coordinates:      locationToCoordinates(s.Location),
			Available:        s.Available,
			AssignedReportID: s.AssignedReportID,
		}
	}
	return responses
}

// AssignmentsToResponses преобразует журнал назначений в DTO
func AssignmentsToResponses(assignments []models.Assignment) []*AssignmentResponse {
	responses := make([]*AssignmentResponse, len(assignments))
	for i, a := range assignments {
		responses[i] = &AssignmentResponse{
			TruckID:    a.TruckID,
			ReportID:   a.ReportID,
			DistanceKm: a.DistanceKm,
			AssignedAt: a.AssignedAt,
		}
	}
	return responses
}

// ModelToLegacyReport преобразует отчет в формат чат-бота
func ModelToLegacyReport(model *models.Report) *LegacyReportResponse {
	return &LegacyReportResponse{
		UserID:        model.ReporterID,
		Coordinates:   locationToCoordinates(model.Location),
		Severity:      model.Severity,
		Hash:          model.ID,
		Timestamp:     model.CreatedAt,
		Status:        string(model.Status),
		Processed:     model.Notified,
		TruckAssigned: model.AssignedTruckID,
		ETA:           model.ETA,
	}
}

// ModelsToLegacyMap преобразует отчеты в словарь hash -> отчет
func ModelsToLegacyMap(reports map[uuid.UUID]*models.Report) map[string]*LegacyReportResponse {
	out := make(map[string]*LegacyReportResponse, len(reports))
	for id, r := range reports {
		out[id.String()] = ModelToLegacyReport(r)
	}
	return out
}

// TruckStatesToLegacy преобразует состояния машин в словарь номер -> машина
func TruckStatesToLegacy(states []models.TruckState) map[string]*LegacyTruckResponse {
	out := make(map[string]*LegacyTruckResponse, len(states))
	for _, s := range states {
		out[s.ID] = &LegacyTruckResponse{
			LicensePlate: s.ID,
			Coordinates:  locationToCoordinates(s.Location),
			Available:    s.Available,
			AssignedHash: s.AssignedReportID,
		}
	}
	return out
}

// coordinatesToLocation ожидает пару [lat, lon], длина проверяется валидатором
func coordinatesToLocation(c []float64) models.Location {
	if len(c) != 2 {
		return models.Location{}
	}
	return models.Location{Latitude: c[0], Longitude: c[1]}
}

func locationToCoordinates(l models.Location) [2]float64 {
	return [2]float64{l.Latitude, l.Longitude}
}
