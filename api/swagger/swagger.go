package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Weekly timetable generation and slot conflict detection for school sections.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Timetable", "description": "Generation, entry editing and slot availability"},
        {"name": "Observability", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/sections/{id}/timetable/generate": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Generate a weekly timetable for a section",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "Nothing placed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Entries created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Section already has active entries", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sections/{id}/timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Active weekly timetable of a section",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sections/{id}/timetable/export": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Download a section timetable",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}}
                }
            }
        },
        "/teachers/{id}/timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Active weekly timetable of a teacher",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/availability": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Check a slot for section, teacher and room conflicts",
                "parameters": [
                    {"name": "sectionId", "in": "query", "required": true, "type": "string"},
                    {"name": "teacherId", "in": "query", "required": true, "type": "string"},
                    {"name": "roomNumber", "in": "query", "type": "string"},
                    {"name": "dayOfWeek", "in": "query", "required": true, "type": "string"},
                    {"name": "periodNumber", "in": "query", "required": true, "type": "integer"},
                    {"name": "excludeEntryId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/entries": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Place a single entry",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTimetableEntryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/entries/{id}": {
            "put": {
                "tags": ["Timetable"],
                "summary": "Change an active entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateTimetableEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot conflict or entry cancelled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/entries/{id}/cancel": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Cancel an active entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/CancelTimetableEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "GenerateTimetableRequest": {
            "type": "object",
            "properties": {
                "periodsPerDay": {"type": "integer"},
                "periodDurationMinutes": {"type": "integer"},
                "breakAfterPeriod": {"type": "integer"},
                "breakDurationMinutes": {"type": "integer"},
                "schoolStartTime": {"type": "string", "example": "07:00"},
                "overwriteExisting": {"type": "boolean"},
                "workingDays": {"type": "array", "items": {"type": "string", "example": "MONDAY"}},
                "rooms": {"type": "array", "items": {"type": "string"}},
                "preferDistinctSubjectsPerDay": {"type": "boolean"},
                "requeuePolicy": {"type": "string", "enum": ["ONCE", "NEVER"]}
            }
        },
        "CreateTimetableEntryRequest": {
            "type": "object",
            "properties": {
                "sectionId": {"type": "string"},
                "subjectId": {"type": "string"},
                "teacherId": {"type": "string"},
                "dayOfWeek": {"type": "string", "example": "MONDAY"},
                "periodNumber": {"type": "integer"},
                "startTime": {"type": "string", "example": "07:00"},
                "endTime": {"type": "string", "example": "07:40"},
                "roomNumber": {"type": "string"}
            },
            "required": ["sectionId", "subjectId", "dayOfWeek", "periodNumber", "startTime", "endTime"]
        },
        "UpdateTimetableEntryRequest": {
            "type": "object",
            "properties": {
                "subjectId": {"type": "string"},
                "teacherId": {"type": "string"},
                "startTime": {"type": "string"},
                "endTime": {"type": "string"},
                "roomNumber": {"type": "string"}
            },
            "required": ["subjectId", "teacherId", "startTime", "endTime"]
        },
        "CancelTimetableEntryRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "message": {"type": "string"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
