package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Group Enrollment API",
        "description": "Capacity-gated group enrollment with FIFO waiting lists",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Enrollments", "description": "Enrollment lifecycle"},
        {"name": "Waiting list", "description": "FIFO waiting-list management"},
        {"name": "Groups", "description": "Group inspection"}
    ],
    "paths": {
        "/enrollments": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll a student into a group",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Group not found"},
                    "409": {"description": "Already enrolled"}
                }
            }
        },
        "/enrollments/{id}": {
            "delete": {
                "tags": ["Enrollments"],
                "summary": "Withdraw an enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Withdrawn", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Enrollment not found"},
                    "409": {"description": "Enrollment in terminal state"}
                }
            }
        },
        "/enrollments/{id}/group": {
            "put": {
                "tags": ["Enrollments"],
                "summary": "Move an active enrollment to another group",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangeGroupRequest"}}
                ],
                "responses": {
                    "200": {"description": "Moved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Enrollment or target group not found"},
                    "409": {"description": "Target group full, duplicate enrollment or non-active state"}
                }
            }
        },
        "/enrollments/{id}/queue-position": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Current waiting-list position, -1 when not waiting",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Position", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Enrollment not found"}
                }
            }
        },
        "/groups/{id}": {
            "get": {
                "tags": ["Groups"],
                "summary": "Group detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Group", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Group not found"}
                }
            }
        },
        "/groups/{id}/occupancy": {
            "get": {
                "tags": ["Groups"],
                "summary": "Derived seat usage of a group",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Occupancy", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Group not found"}
                }
            }
        },
        "/groups/{id}/waitlist": {
            "get": {
                "tags": ["Waiting list"],
                "summary": "Waiting list of a group, ascending by position",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Waiting list", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Group not found"}
                }
            }
        },
        "/groups/{id}/waitlist/promote": {
            "post": {
                "tags": ["Waiting list"],
                "summary": "Promote the head of the waiting list (admin)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Promoted enrollment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "204": {"description": "Waiting list empty"},
                    "404": {"description": "Group not found"}
                }
            }
        },
        "/groups/{id}/waitlist/drain": {
            "post": {
                "tags": ["Waiting list"],
                "summary": "Promote waiters while seats remain (admin)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Promotion count", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Group not found"}
                }
            }
        },
        "/groups/{id}/waitlist/export": {
            "get": {
                "tags": ["Waiting list"],
                "summary": "Export the waiting-list roster as CSV or PDF (admin)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Roster file"},
                    "400": {"description": "Unsupported format"},
                    "404": {"description": "Group not found"}
                }
            }
        },
        "/waitlist/{id}": {
            "delete": {
                "tags": ["Waiting list"],
                "summary": "Leave the waiting list voluntarily",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Withdrawn entry", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Enrollment not found"},
                    "409": {"description": "Enrollment not on waiting list"}
                }
            }
        },
        "/students/{id}/waitlist": {
            "get": {
                "tags": ["Waiting list"],
                "summary": "Waiting-list entries held by a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Entries", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "EnrollRequest": {
            "type": "object",
            "required": ["student_id", "group_id"],
            "properties": {
                "student_id": {"type": "string"},
                "group_id": {"type": "string"}
            }
        },
        "ChangeGroupRequest": {
            "type": "object",
            "required": ["target_group_id"],
            "properties": {
                "target_group_id": {"type": "string"}
            }
        },
        "Enrollment": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student_id": {"type": "string"},
                "group_id": {"type": "string"},
                "status": {"type": "string", "enum": ["ACTIVE", "WAITING_LIST", "WITHDRAWN", "COMPLETED"]},
                "waiting_position": {"type": "integer"},
                "enrolled_at": {"type": "string", "format": "date-time"},
                "withdrawn_at": {"type": "string", "format": "date-time"},
                "promoted_at": {"type": "string", "format": "date-time"}
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
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
