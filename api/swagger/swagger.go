package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Academy Check-in API",
        "description": "Attendance check-in service for martial arts academies",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Operator login"},
        {"name": "Students", "description": "Student lookup and roster"},
        {"name": "Biometric", "description": "Face matching and enrollment"},
        {"name": "Kiosk", "description": "Kiosk device support"},
        {"name": "Attendance", "description": "Check-in eligibility and recording"},
        {"name": "Reports", "description": "Attendance sheet exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate operator",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "category", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Enroll a student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload"}
                }
            }
        },
        "/students/search": {
            "get": {
                "tags": ["Students"],
                "summary": "Search students",
                "parameters": [
                    {"name": "q", "in": "query", "type": "string", "required": true},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Query too short"}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Deactivate a student",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deactivated"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/students/{id}/subscriptions": {
            "get": {
                "tags": ["Students"],
                "summary": "Student subscription history",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/students/{id}/available-courses": {
            "get": {
                "tags": ["Students"],
                "summary": "Today's sessions for a student",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/biometric/students/embeddings": {
            "get": {
                "tags": ["Biometric"],
                "summary": "List enrolled embeddings",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/biometric/students/{id}/face-embedding": {
            "get": {
                "tags": ["Biometric"],
                "summary": "Get a student's embedding",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Biometric"],
                "summary": "Enroll or replace a student's embedding",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EmbeddingUpload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Biometric"],
                "summary": "Withdraw a student from matching",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Removed"}
                }
            }
        },
        "/biometric/match": {
            "post": {
                "tags": ["Biometric"],
                "summary": "Match a probe descriptor",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No match above threshold"},
                    "429": {"description": "Too many attempts"}
                }
            }
        },
        "/biometric/attempts": {
            "get": {
                "tags": ["Biometric"],
                "summary": "Recent biometric attempts",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Biometric"],
                "summary": "Log a kiosk match attempt",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AttemptReport"}}
                ],
                "responses": {
                    "200": {"description": "Logged", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/kiosk/camera-error": {
            "post": {
                "tags": ["Kiosk"],
                "summary": "Classify a kiosk camera failure",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CameraErrorReport"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/checkin": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Record a check-in",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CheckinRequest"}}
                ],
                "responses": {
                    "201": {"description": "Recorded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "No active subscription"},
                    "409": {"description": "Already checked in"}
                }
            }
        },
        "/attendance/validate": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Dry-run eligibility check",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ValidateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/today": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Today's check-ins",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/history": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Attendance history",
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "course_id", "in": "query", "type": "string"},
                    {"name": "method", "in": "query", "type": "string"},
                    {"name": "date_from", "in": "query", "type": "string"},
                    {"name": "date_to", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/stats": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Daily attendance stats",
                "parameters": [
                    {"name": "date", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/report/export": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export the daily attendance sheet",
                "parameters": [
                    {"name": "date", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "MatchRequest": {
            "type": "object",
            "required": ["descriptor"],
            "properties": {
                "descriptor": {"type": "array", "items": {"type": "number"}},
                "student_id": {"type": "string"},
                "threshold": {"type": "number"}
            }
        },
        "EmbeddingUpload": {
            "type": "object",
            "required": ["descriptor"],
            "properties": {
                "descriptor": {"type": "array", "items": {"type": "number"}},
                "face_photo_url": {"type": "string"},
                "quality_score": {"type": "number"}
            }
        },
        "AttemptReport": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "success": {"type": "boolean"},
                "similarity": {"type": "number"},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        },
        "CameraErrorReport": {
            "type": "object",
            "required": ["error_name"],
            "properties": {
                "error_name": {"type": "string"},
                "message": {"type": "string"},
                "device_id": {"type": "string"}
            }
        },
        "CheckinRequest": {
            "type": "object",
            "required": ["student_id", "session_id", "method"],
            "properties": {
                "student_id": {"type": "string"},
                "session_id": {"type": "string"},
                "method": {"type": "string", "enum": ["MANUAL", "QR", "BIOMETRIC", "KIOSK"]},
                "notes": {"type": "string"}
            }
        },
        "CreateStudentRequest": {
            "type": "object",
            "required": ["registration", "full_name"],
            "properties": {
                "registration": {"type": "string"},
                "full_name": {"type": "string"},
                "email": {"type": "string"},
                "document_number": {"type": "string"},
                "category": {"type": "string"}
            }
        },
        "ValidateRequest": {
            "type": "object",
            "required": ["student_id", "session_id"],
            "properties": {
                "student_id": {"type": "string"},
                "session_id": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
