package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Essay Feedback API",
        "description": "Student essay intake, AI draft feedback, teacher approval, and report delivery",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Essays", "description": "Essay lifecycle: submit, review, approve, send"}
    ],
    "paths": {
        "/submit": {
            "post": {
                "tags": ["Essays"],
                "summary": "Submit a student essay",
                "description": "Stores the essay and schedules AI draft feedback in the background",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitEssayRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Empty or invalid text", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analyze": {
            "post": {
                "tags": ["Essays"],
                "summary": "Submit a student essay (legacy alias)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitEssayRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/essays": {
            "get": {
                "tags": ["Essays"],
                "summary": "List essay records",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/essays/{processId}": {
            "get": {
                "tags": ["Essays"],
                "summary": "Get one essay record",
                "parameters": [
                    {"name": "processId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/essays/approve": {
            "post": {
                "tags": ["Essays"],
                "summary": "Approve draft feedback",
                "description": "Records the teacher's final feedback and completes the record. Repeat calls are no-ops.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApproveEssayRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Draft not ready", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/essays/send-report": {
            "post": {
                "tags": ["Essays"],
                "summary": "Send the feedback report",
                "description": "Dispatches the student or parent report for an approved record. Repeat calls are no-ops.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SendReportRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Record not approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/essays/report/{token}": {
            "get": {
                "tags": ["Essays"],
                "summary": "Download a rendered feedback report",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF document"},
                    "403": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        }
    },
    "definitions": {
        "SubmitEssayRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string"}
            },
            "required": ["text"]
        },
        "ApproveEssayRequest": {
            "type": "object",
            "properties": {
                "processId": {"type": "string"},
                "finalFeedback": {"type": "string"},
                "lessonFeedback": {"type": "string"},
                "teacherId": {"type": "string"}
            },
            "required": ["processId", "finalFeedback"]
        },
        "SendReportRequest": {
            "type": "object",
            "properties": {
                "processId": {"type": "string"},
                "reportType": {"type": "string", "enum": ["student", "parent"]}
            },
            "required": ["processId"]
        },
        "EssayRecord": {
            "type": "object",
            "properties": {
                "processId": {"type": "string"},
                "processStatus": {"type": "string", "enum": ["received", "ai_drafted", "completed", "sent"]},
                "currentStep": {"type": "integer"},
                "essayId": {"type": "string"},
                "studentEssay": {"type": "string"},
                "evaluation": {"type": "object"},
                "aiFeedback": {"type": "object"},
                "teacherCorrection": {"type": "object"},
                "lessonFeedback": {"type": "string"},
                "reportStatus": {"type": "object"},
                "errorMessage": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
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
