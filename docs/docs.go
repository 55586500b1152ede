// Package docs содержит описание API для swagger UI.
// Файл поддерживается вручную вместе с аннотациями обработчиков.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/admin/reset": {
            "post": {
                "description": "Wipe all reports and return every truck to its default position. Requires the admin secret.",
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Reset dispatch state",
                "parameters": [
                    {"type": "string", "description": "Admin secret", "name": "X-Admin-Secret", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "Reset done", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/assignments": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Get every truck assignment in the order it was made. Requires API key when API_KEYS is set.",
                "produces": ["application/json"],
                "tags": ["Trucks"],
                "summary": "Get assignment history",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/v1.AssignmentResponse"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/reports": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Get every report keyed by its ID. Requires API key when API_KEYS is set.",
                "produces": ["application/json"],
                "tags": ["Reports"],
                "summary": "Get all reports",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"$ref": "#/definitions/v1.ReportResponse"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            },
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Accept an incident report and queue it for dispatch. Requires API key when API_KEYS is set.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Reports"],
                "summary": "Create a new incident report",
                "parameters": [
                    {"description": "Report creation request", "name": "report", "in": "body", "required": true, "schema": {"$ref": "#/definitions/v1.CreateReportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/v1.CreateReportResponse"}},
                    "400": {"description": "Invalid request body or validation error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/reports/{id}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Get a single report with its assignment and ETA. Requires API key when API_KEYS is set.",
                "produces": ["application/json"],
                "tags": ["Reports"],
                "summary": "Get report status",
                "parameters": [
                    {"type": "string", "description": "Report ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/v1.ReportResponse"}},
                    "400": {"description": "Invalid report ID", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Report not found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/reports/{id}/complete": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Mark an assigned report as resolved and release its truck. Requires API key when API_KEYS is set.",
                "produces": ["application/json"],
                "tags": ["Reports"],
                "summary": "Complete a report",
                "parameters": [
                    {"type": "string", "description": "Report ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/v1.ReportResponse"}},
                    "400": {"description": "Invalid report ID", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Report not found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "409": {"description": "Report is not assigned", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/system/health": {
            "get": {
                "description": "Get health status of the application",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Get application health status",
                "responses": {
                    "200": {"description": "Status OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/trucks": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Get every truck with its availability and open assignment. Requires API key when API_KEYS is set.",
                "produces": ["application/json"],
                "tags": ["Trucks"],
                "summary": "Get trucks",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/v1.TruckResponse"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "v1.AssignmentResponse": {
            "description": "DTO записи журнала назначений",
            "type": "object",
            "properties": {
                "assigned_at": {"type": "string"},
                "distance_km": {"type": "number"},
                "report_id": {"type": "string"},
                "truck_id": {"type": "string"}
            }
        },
        "v1.CreateReportRequest": {
            "description": "DTO для создания отчета об инциденте",
            "type": "object",
            "required": ["coordinates", "reporter_id", "severity"],
            "properties": {
                "coordinates": {"type": "array", "items": {"type": "number"}},
                "reporter_id": {"type": "string", "maxLength": 255},
                "severity": {"type": "integer", "maximum": 10, "minimum": 1}
            }
        },
        "v1.CreateReportResponse": {
            "description": "DTO ответа на создание отчета",
            "type": "object",
            "properties": {
                "id": {"type": "string"}
            }
        },
        "v1.ReportResponse": {
            "description": "DTO для ответа с информацией об отчете",
            "type": "object",
            "properties": {
                "assigned_at": {"type": "string"},
                "assigned_truck_id": {"type": "string"},
                "coordinates": {"type": "array", "items": {"type": "number"}},
                "created_at": {"type": "string"},
                "eta": {"type": "string"},
                "id": {"type": "string"},
                "notified": {"type": "boolean"},
                "reporter_id": {"type": "string"},
                "resolved_at": {"type": "string"},
                "severity": {"type": "integer"},
                "status": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "v1.TruckResponse": {
            "description": "DTO для ответа с состоянием машины",
            "type": "object",
            "properties": {
                "assigned_report_id": {"type": "string"},
                "available": {"type": "boolean"},
                "coordinates": {"type": "array", "items": {"type": "number"}},
                "truck_id": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "X-API-Key",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Truck Dispatch System API",
	Description:      "Incident intake and nearest-truck dispatch API.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
