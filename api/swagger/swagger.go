package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Weekly class schedules with overlap detection and calendar grid layout",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Schedules", "description": "Weekly schedule entries of a group"},
        {"name": "Grid", "description": "Calendar grid composition, layout and export"}
    ],
    "paths": {
        "/groups/{groupId}/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedule entries",
                "parameters": [
                    {"name": "groupId", "in": "path", "required": true, "type": "string"},
                    {"name": "day", "in": "query", "type": "string", "description": "Weekday index (0=Sunday) or localised name"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid weekday", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schedules"],
                "summary": "Create a schedule entry",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "groupId", "in": "path", "required": true, "type": "string"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "INVALID_TIME_FORMAT or END_BEFORE_START", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "OVERLAP_CONFLICT", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "RATE_LIMITED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/groups/{groupId}/schedules/{id}": {
            "put": {
                "tags": ["Schedules"],
                "summary": "Replace a schedule entry",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "groupId", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "OVERLAP_CONFLICT", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Schedules"],
                "summary": "Delete a schedule entry",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "groupId", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/groups/{groupId}/schedules/validate": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Dry-run overlap check",
                "parameters": [
                    {"name": "groupId", "in": "path", "required": true, "type": "string"},
                    {"name": "excludeId", "in": "query", "type": "string"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Validation result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/groups/{groupId}/schedules/grid": {
            "get": {
                "tags": ["Grid"],
                "summary": "Weekly grid with block geometry",
                "parameters": [
                    {"name": "groupId", "in": "path", "required": true, "type": "string"},
                    {"name": "minContentHeight", "in": "query", "type": "number"},
                    {"name": "lang", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/groups/{groupId}/schedules/export": {
            "get": {
                "tags": ["Grid"],
                "summary": "Download the timetable as PDF or CSV",
                "produces": ["application/pdf", "text/csv"],
                "parameters": [
                    {"name": "groupId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["pdf", "csv"]},
                    {"name": "lang", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/schedules/layout": {
            "post": {
                "tags": ["Grid"],
                "summary": "Compute the geometry of one block",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LayoutRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/weekdays": {
            "get": {
                "tags": ["Grid"],
                "summary": "Localised weekday names",
                "parameters": [
                    {"name": "lang", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ScheduleRequest": {
            "type": "object",
            "required": ["weekday", "startTime", "endTime", "subjectId"],
            "properties": {
                "weekday": {"type": "integer", "minimum": 0, "maximum": 6},
                "startTime": {"type": "string", "example": "07:30"},
                "endTime": {"type": "string", "example": "09:00"},
                "subjectId": {"type": "string"},
                "teacherId": {"type": "string"},
                "roomId": {"type": "string"},
                "mode": {"type": "string", "enum": ["IN_PERSON", "REMOTE", "HYBRID"]},
                "status": {"type": "string", "enum": ["ACTIVE", "INACTIVE"]}
            }
        },
        "LayoutRequest": {
            "type": "object",
            "properties": {
                "startTime": {"type": "string"},
                "endTime": {"type": "string"},
                "contentMinHeightPx": {"type": "number"},
                "grid": {
                    "type": "object",
                    "properties": {
                        "firstSlotStart": {"type": "string"},
                        "lastSlotEnd": {"type": "string"},
                        "pixelsPerHour": {"type": "number"}
                    }
                }
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
