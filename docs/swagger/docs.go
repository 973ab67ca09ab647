// Package swagger provides API documentation
package swagger

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
        "/v1/uploads": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["uploads"],
                "summary": "List uploaded files",
                "parameters": [
                    {"type": "integer", "description": "Page size (max 100)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Offset", "name": "offset", "in": "query"},
                    {"type": "string", "description": "image, video, audio or document", "name": "category", "in": "query"},
                    {"type": "string", "description": "Owner id", "name": "user_id", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/responses.FileListResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/responses.ErrorResponse"}}
                }
            }
        },
        "/v1/uploads/single": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Stores one file from the multipart field \"file\". Images are downsized and re-encoded as JPEG.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["uploads"],
                "summary": "Upload a file",
                "parameters": [
                    {"type": "file", "description": "File to upload", "name": "file", "in": "formData", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/responses.UploadSingleResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/responses.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/responses.ErrorResponse"}}
                }
            }
        },
        "/v1/uploads/multiple": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Stores files from the \"images\", \"videos\" and \"documents\" fields. Either every file is stored or none is.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["uploads"],
                "summary": "Upload several files",
                "parameters": [
                    {"type": "file", "description": "Images (max 10)", "name": "images", "in": "formData"},
                    {"type": "file", "description": "Videos (max 3)", "name": "videos", "in": "formData"},
                    {"type": "file", "description": "Documents (max 5)", "name": "documents", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/responses.UploadMultipleResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/responses.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/responses.ErrorResponse"}}
                }
            }
        },
        "/v1/uploads/policies": {
            "get": {
                "description": "Per-category size limits, allowed types and image settings.",
                "produces": ["application/json"],
                "tags": ["uploads"],
                "summary": "Active upload policies",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/responses.PoliciesResponse"}}
                }
            }
        },
        "/v1/uploads/policies/schema": {
            "get": {
                "description": "JSON Schema accepted by the UPLOAD_POLICY_FILE document.",
                "produces": ["application/json"],
                "tags": ["uploads"],
                "summary": "Policy file JSON Schema",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/v1/uploads/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["uploads"],
                "summary": "Get an uploaded file record",
                "parameters": [
                    {"type": "string", "description": "File id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/responses.FileDescriptor"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/responses.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Removes the record and, best effort, the stored file.",
                "produces": ["application/json"],
                "tags": ["uploads"],
                "summary": "Delete an uploaded file",
                "parameters": [
                    {"type": "string", "description": "File id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/responses.DeleteResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/responses.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/responses.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "responses.FileDescriptor": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "original_name": {"type": "string"},
                "file_name": {"type": "string"},
                "file_size": {"type": "string"},
                "file_type": {"type": "string"},
                "mime_type": {"type": "string"},
                "url": {"type": "string"},
                "bytes": {"type": "integer"},
                "user_id": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "responses.FileFailure": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "file": {"type": "string"},
                "stage": {"type": "string"},
                "kind": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "responses.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "error": {"type": "string"},
                "message": {"type": "string"},
                "type": {"type": "string"},
                "stage": {"type": "string"},
                "kind": {"type": "string"},
                "failures": {"type": "array", "items": {"$ref": "#/definitions/responses.FileFailure"}},
                "request_id": {"type": "string"}
            }
        },
        "responses.UploadSingleResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "file": {"$ref": "#/definitions/responses.FileDescriptor"}
            }
        },
        "responses.UploadMultipleResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "count": {"type": "integer"},
                "files": {"type": "array", "items": {"$ref": "#/definitions/responses.FileDescriptor"}}
            }
        },
        "responses.FileListResponse": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/responses.FileDescriptor"}},
                "total": {"type": "integer"},
                "limit": {"type": "integer"},
                "offset": {"type": "integer"}
            }
        },
        "responses.DeleteResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "deleted": {"type": "boolean"}
            }
        },
        "responses.PoliciesResponse": {
            "type": "object",
            "properties": {
                "policies": {"type": "object", "additionalProperties": {"type": "object"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Postora Upload API",
	Description:      "Upload pipeline: classify, validate, store, optimize and record files.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
