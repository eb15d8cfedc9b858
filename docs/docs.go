// Package docs registers the OpenAPI document served under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/backup/create": {
            "post": {
                "description": "Snapshots wallet storage into a backup file, encrypted when a password is given",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["backup"],
                "summary": "Create backup",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.CreateBackupRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.CreateBackupResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/backup/parse": {
            "post": {
                "description": "Decodes, decrypts when needed and validates a backup file without restoring it",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["backup"],
                "summary": "Parse backup",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.ParseBackupRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.ParseBackupResponse"}},
                    "401": {"description": "Password required", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "422": {"description": "Wrong password, unsupported version or invalid backup", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/backup/restore": {
            "post": {
                "description": "Parses a backup file and merges it into wallet storage",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["backup"],
                "summary": "Restore backup",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.RestoreRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.RestoreResponse"}},
                    "409": {"description": "Another restore is running", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "500": {"description": "Storage failed; summary lists completed categories", "schema": {"$ref": "#/definitions/model.RestoreResponse"}}
                }
            }
        },
        "/backup/restore/ws": {
            "get": {
                "description": "WebSocket. The client sends one model.RestoreRequest; the server streams model.RestoreProgressMessage values, the last one with done=true, then closes.",
                "tags": ["backup"],
                "summary": "Restore backup with progress",
                "responses": {
                    "101": {"description": "Switching Protocols", "schema": {"$ref": "#/definitions/model.RestoreProgressMessage"}}
                }
            }
        },
        "/backup/qr/split": {
            "post": {
                "description": "Encodes a backup file as QR chunk strings in index order",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["qr"],
                "summary": "Split backup into QR chunks",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.SplitRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.SplitResponse"}}
                }
            }
        },
        "/backup/qr/png": {
            "post": {
                "description": "Splits a backup file and renders every chunk as a base64 PNG QR code (level M)",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["qr"],
                "summary": "Render backup as QR codes",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.SplitRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.QRImagesResponse"}}
                }
            }
        },
        "/backup/qr/combine": {
            "post": {
                "description": "Reassembles scanned chunk strings (any order, duplicates allowed) into the backup file",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["qr"],
                "summary": "Reassemble QR chunks",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.CombineRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.CombineResponse"}},
                    "409": {"description": "Chunks from different backups", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "422": {"description": "Chunks missing", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "model.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"},
                "stage": {"type": "string"},
                "reasons": {"type": "array", "items": {"type": "string"}}
            }
        },
        "model.CreateBackupRequest": {
            "type": "object",
            "properties": {
                "backupType": {"type": "string", "enum": ["full", "wallets-only"], "example": "full"},
                "password": {"type": "string"}
            }
        },
        "model.CreateBackupResponse": {
            "type": "object",
            "properties": {
                "filename": {"type": "string", "example": "avian-backup-full-2024-03-09.json"},
                "backupId": {"type": "string"},
                "walletCount": {"type": "integer"},
                "encrypted": {"type": "boolean"},
                "data": {"type": "string"}
            }
        },
        "model.ParseBackupRequest": {
            "type": "object",
            "properties": {
                "data": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "model.ParseBackupResponse": {
            "type": "object",
            "properties": {
                "document": {"$ref": "#/definitions/model.BackupDocument"},
                "validation": {"$ref": "#/definitions/model.ValidationResult"},
                "encrypted": {"type": "boolean"}
            }
        },
        "model.BackupDocument": {
            "type": "object",
            "properties": {
                "version": {"type": "string", "example": "1.0.0"},
                "timestamp": {"type": "integer"},
                "metadata": {"$ref": "#/definitions/model.BackupMetadata"},
                "wallets": {"type": "array", "items": {"$ref": "#/definitions/model.WalletRecord"}},
                "addressBook": {"type": "array", "items": {"$ref": "#/definitions/model.ContactRecord"}},
                "settings": {"type": "object", "additionalProperties": true},
                "transactions": {"type": "array", "items": {"type": "object"}},
                "securityAudit": {"type": "array", "items": {"type": "object"}},
                "watchedAddresses": {"type": "array", "items": {"type": "object"}}
            }
        },
        "model.BackupMetadata": {
            "type": "object",
            "properties": {
                "backupType": {"type": "string"},
                "backupId": {"type": "string"},
                "appVersion": {"type": "string"},
                "walletCount": {"type": "integer"}
            }
        },
        "model.WalletRecord": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "address": {"type": "string"},
                "privateKey": {"type": "string"},
                "isEncrypted": {"type": "boolean"},
                "mnemonic": {"type": "string"},
                "createdAt": {"type": "integer"},
                "lastAccessed": {"type": "integer"}
            }
        },
        "model.ContactRecord": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "address": {"type": "string"},
                "label": {"type": "string"}
            }
        },
        "model.ValidationResult": {
            "type": "object",
            "properties": {
                "isValid": {"type": "boolean"},
                "errors": {"type": "array", "items": {"type": "string"}},
                "walletsCount": {"type": "integer"},
                "addressesCount": {"type": "integer"}
            }
        },
        "model.RestoreOptions": {
            "type": "object",
            "properties": {
                "includeWallets": {"type": "boolean"},
                "includeAddressBook": {"type": "boolean"},
                "includeSettings": {"type": "boolean"},
                "includeTransactions": {"type": "boolean"},
                "includeSecurityAudit": {"type": "boolean"},
                "includeWatchedAddresses": {"type": "boolean"},
                "overwriteExisting": {"type": "boolean"}
            }
        },
        "model.RestoreRequest": {
            "type": "object",
            "properties": {
                "data": {"type": "string"},
                "password": {"type": "string"},
                "options": {"$ref": "#/definitions/model.RestoreOptions"}
            }
        },
        "model.RestoreSummary": {
            "type": "object",
            "properties": {
                "walletsRestored": {"type": "integer"},
                "addressesRestored": {"type": "integer"},
                "settingsRestored": {"type": "integer"},
                "transactionsRestored": {"type": "integer"},
                "auditEventsRestored": {"type": "integer"},
                "watchedRestored": {"type": "integer"},
                "recordsSkipped": {"type": "integer"},
                "completed": {"type": "array", "items": {"type": "string"}},
                "skipped": {"type": "array", "items": {"type": "string"}},
                "failed": {"type": "string"},
                "partial": {"type": "boolean"}
            }
        },
        "model.RestoreResponse": {
            "type": "object",
            "properties": {
                "summary": {"$ref": "#/definitions/model.RestoreSummary"},
                "error": {"type": "string"},
                "code": {"type": "string"}
            }
        },
        "model.RestoreProgressMessage": {
            "type": "object",
            "properties": {
                "step": {"type": "string"},
                "percent": {"type": "integer"},
                "done": {"type": "boolean"},
                "summary": {"$ref": "#/definitions/model.RestoreSummary"},
                "error": {"type": "string"},
                "code": {"type": "string"}
            }
        },
        "model.SplitRequest": {
            "type": "object",
            "properties": {
                "data": {"type": "string"},
                "size": {"type": "integer"}
            }
        },
        "model.SplitResponse": {
            "type": "object",
            "properties": {
                "chunks": {"type": "array", "items": {"type": "string"}},
                "count": {"type": "integer"}
            }
        },
        "model.QRImagesResponse": {
            "type": "object",
            "properties": {
                "chunks": {"type": "array", "items": {"type": "string"}},
                "images": {"type": "array", "items": {"type": "string"}}
            }
        },
        "model.CombineRequest": {
            "type": "object",
            "properties": {
                "chunks": {"type": "array", "items": {"type": "string"}}
            }
        },
        "model.CombineResponse": {
            "type": "object",
            "properties": {
                "data": {"type": "string"},
                "encrypted": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Avian wallet backup API",
	Description:      "Create, parse, restore and QR-transfer Avian wallet backups.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
