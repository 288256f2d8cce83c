package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Credential Ledger API",
        "description": "Approval workflows, credential issuance and public verification backed by a ledger token registry",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Approvals", "description": "Generic multi-step approval engine"},
        {"name": "Degrees", "description": "Degree proposal ratification"},
        {"name": "Semester Results", "description": "Semester result submission"},
        {"name": "Credentials", "description": "Credential lifecycle and share links"},
        {"name": "Verification", "description": "Public credential verification"},
        {"name": "Jobs", "description": "Failed pipeline jobs"}
    ],
    "paths": {
        "/approvals": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Open an approval request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateApprovalRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate pending step", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/pending": {
            "get": {
                "tags": ["Approvals"],
                "summary": "Count pending approvals by type and step",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "type", "in": "query", "type": "string", "enum": ["CURRICULUM", "SEMESTER_RESULT", "DEGREE_PROPOSAL", "CORRECTION"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/{id}": {
            "get": {
                "tags": ["Approvals"],
                "summary": "Get an approval",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/{id}/review": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Approve or reject a pending approval",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already decided", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/degree-proposals": {
            "post": {
                "tags": ["Degrees"],
                "summary": "Draft a degree proposal",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateDegreeProposalRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/degree-proposals/{id}": {
            "get": {
                "tags": ["Degrees"],
                "summary": "Get a degree proposal",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/degree-proposals/{id}/submit": {
            "post": {
                "tags": ["Degrees"],
                "summary": "Submit a draft proposal for academic review",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Student not eligible", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/degree-proposals/{id}/academic-review": {
            "post": {
                "tags": ["Degrees"],
                "summary": "Record the academic board decision",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/degree-proposals/{id}/admin-review": {
            "post": {
                "tags": ["Degrees"],
                "summary": "Record the administrative decision",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/degree-eligibility": {
            "get": {
                "tags": ["Degrees"],
                "summary": "Check degree eligibility of a student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/semester-results/{id}/submit": {
            "post": {
                "tags": ["Semester Results"],
                "summary": "Submit a draft semester result for approval",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/credentials": {
            "get": {
                "tags": ["Credentials"],
                "summary": "List credentials",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated PENDING, ISSUED, REVOKED, REPLACED"},
                    {"name": "type", "in": "query", "type": "string", "enum": ["SEMESTER", "DEGREE", "CERTIFICATE"]},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Credentials"],
                "summary": "Create a PENDING credential",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCredentialRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Source not approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/credentials/{id}": {
            "get": {
                "tags": ["Credentials"],
                "summary": "Get a credential",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/credentials/{id}/issue": {
            "post": {
                "tags": ["Credentials"],
                "summary": "Request minting of a PENDING credential",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "202": {"description": "Jobs enqueued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/credentials/{id}/revoke": {
            "post": {
                "tags": ["Credentials"],
                "summary": "Request revocation of an ISSUED credential",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RevokeCredentialRequest"}}
                ],
                "responses": {
                    "202": {"description": "Job enqueued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/credentials/{id}/replace": {
            "post": {
                "tags": ["Credentials"],
                "summary": "Replace an ISSUED credential with a corrected one",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RevokeCredentialRequest"}}
                ],
                "responses": {
                    "202": {"description": "Replacement created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/credentials/{id}/reconcile": {
            "get": {
                "tags": ["Credentials"],
                "summary": "Compare a credential with its ledger token",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Ledger unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/credentials/{id}/share-links": {
            "post": {
                "tags": ["Credentials"],
                "summary": "Create a public verification link",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/CreateShareLinkRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/share-links/{id}": {
            "delete": {
                "tags": ["Credentials"],
                "summary": "Disable a share link",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Revoked"}
                }
            }
        },
        "/verify/share/{token}": {
            "get": {
                "tags": ["Verification"],
                "summary": "Verify a credential through a share link",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Verification result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/verify/hash/{hash}": {
            "get": {
                "tags": ["Verification"],
                "summary": "Verify a credential by document hash",
                "parameters": [
                    {"name": "hash", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Verification result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed hash", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/verify/token/{tokenId}": {
            "get": {
                "tags": ["Verification"],
                "summary": "Verify a credential by ledger token id",
                "parameters": [
                    {"name": "tokenId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Verification result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed token id", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/jobs/failed": {
            "get": {
                "tags": ["Jobs"],
                "summary": "List FAILED job records",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "type", "in": "query", "type": "string", "enum": ["mint", "revoke", "createStudentWallet", "registerStudent", "submitSemesterReport"]},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/jobs/dead-letters/{queue}": {
            "get": {
                "tags": ["Jobs"],
                "summary": "List buried job envelopes of a queue",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "queue", "in": "path", "required": true, "type": "string", "enum": ["ledger", "wallets"]},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateApprovalRequest": {
            "type": "object",
            "required": ["type", "entityType", "entityId"],
            "properties": {
                "type": {"type": "string", "enum": ["CURRICULUM", "SEMESTER_RESULT", "DEGREE_PROPOSAL", "CORRECTION"]},
                "entityType": {"type": "string"},
                "entityId": {"type": "string"},
                "step": {"type": "integer"},
                "note": {"type": "string"}
            }
        },
        "ReviewRequest": {
            "type": "object",
            "required": ["decision"],
            "properties": {
                "decision": {"type": "string", "enum": ["APPROVED", "REJECTED"]},
                "comments": {"type": "string"}
            }
        },
        "CreateDegreeProposalRequest": {
            "type": "object",
            "required": ["studentId", "expectedYear"],
            "properties": {
                "studentId": {"type": "string"},
                "expectedYear": {"type": "integer"}
            }
        },
        "CreateCredentialRequest": {
            "type": "object",
            "required": ["studentId", "type", "sourceId"],
            "properties": {
                "studentId": {"type": "string"},
                "type": {"type": "string", "enum": ["SEMESTER", "DEGREE", "CERTIFICATE"]},
                "sourceId": {"type": "string"},
                "title": {"type": "string"},
                "attributes": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "RevokeCredentialRequest": {
            "type": "object",
            "required": ["reason"],
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "CreateShareLinkRequest": {
            "type": "object",
            "properties": {
                "ttl": {"type": "string", "example": "72h"}
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
