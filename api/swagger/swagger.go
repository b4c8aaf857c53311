package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Rewards API",
        "description": "Leaderboard scoring and anti-gaming service",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Service account token exchange"},
        {"name": "Points", "description": "Scoring, caps and rate limits"},
        {"name": "Leaderboard", "description": "Ranked boards, scans and exports"},
        {"name": "Normalization", "description": "Cross-context score normalization"},
        {"name": "Anomalies", "description": "Anti-gaming detection and review"}
    ],
    "paths": {
        "/auth/token": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Issue access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/points/awards": {
            "post": {
                "tags": ["Points"],
                "summary": "Award points for an activity completion",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AwardPointsRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["Points"],
                "summary": "List granted awards",
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "activity_type", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/points/preview": {
            "post": {
                "tags": ["Points"],
                "summary": "Preview a point calculation without side effects",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AwardPointsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/points/limits/{studentId}": {
            "get": {
                "tags": ["Points"],
                "summary": "Current rate limit window for a student",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaderboard": {
            "get": {
                "tags": ["Leaderboard"],
                "summary": "Ranked totals aggregated from point awards",
                "parameters": [
                    {"name": "activity_type", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "normalize_context", "in": "query", "type": "string"},
                    {"name": "method", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaderboard/scan": {
            "post": {
                "tags": ["Leaderboard"],
                "summary": "Scan the board for population-level outliers",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaderboard/exports": {
            "post": {
                "tags": ["Leaderboard"],
                "summary": "Start an asynchronous export",
                "parameters": [
                    {"name": "format", "in": "query", "required": true, "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaderboard/exports/{id}": {
            "get": {
                "tags": ["Leaderboard"],
                "summary": "Export job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/leaderboard/exports/download": {
            "get": {
                "tags": ["Leaderboard"],
                "summary": "Download a finished export artifact",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        },
        "/normalization/contexts": {
            "post": {
                "tags": ["Normalization"],
                "summary": "Register a comparison context",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/NormalizationContext"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/normalization/students": {
            "post": {
                "tags": ["Normalization"],
                "summary": "Register a student's raw data within a context",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentContext"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/normalization/contexts/{id}/scores": {
            "get": {
                "tags": ["Normalization"],
                "summary": "Normalized scores for students in a context",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "method", "in": "query", "type": "string"},
                    {"name": "student_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/anomalies/check": {
            "post": {
                "tags": ["Anomalies"],
                "summary": "Run anomaly detection for one event",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PointEarningEvent"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/anomalies": {
            "get": {
                "tags": ["Anomalies"],
                "summary": "List anomaly flags",
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "resolved", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/anomalies/{id}/resolve": {
            "patch": {
                "tags": ["Anomalies"],
                "summary": "Mark an anomaly flag as handled",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not found"}
                }
            }
        }
    },
    "definitions": {
        "TokenRequest": {
            "type": "object",
            "properties": {
                "client_id": {"type": "string"},
                "client_secret": {"type": "string"}
            },
            "required": ["client_id", "client_secret"]
        },
        "AwardPointsRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "activity_type": {"type": "string"},
                "activity_id": {"type": "string"},
                "difficulty": {"type": "string", "enum": ["easy", "medium", "hard", "expert"]},
                "score": {"type": "number"},
                "time_spent_minutes": {"type": "number"},
                "is_repeat": {"type": "boolean"},
                "custom_multiplier": {"type": "number"}
            },
            "required": ["student_id", "activity_type", "activity_id"]
        },
        "NormalizationContext": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "kind": {"type": "string", "enum": ["class", "subject", "course", "campus"]},
                "average_score": {"type": "number"},
                "standard_dev": {"type": "number"},
                "population_size": {"type": "integer"},
                "difficulty_rating": {"type": "number"}
            },
            "required": ["id"]
        },
        "StudentContext": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "context_id": {"type": "string"},
                "raw_score": {"type": "number"},
                "time_spent_hours": {"type": "number"},
                "activities_completed": {"type": "integer"},
                "activities_total": {"type": "integer"},
                "join_date": {"type": "string"}
            },
            "required": ["student_id", "context_id"]
        },
        "PointEarningEvent": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "amount": {"type": "integer"},
                "source": {"type": "string"},
                "source_id": {"type": "string"},
                "timestamp": {"type": "string"}
            },
            "required": ["student_id", "amount", "source"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
