// Package docs holds the OpenAPI document for the budget routes, laid out the
// way swag generates it. Paths are relative to the API base path, so routes
// mounted at the root (such as /health) are not listed.
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
        "/budgets": {
            "get": {
                "description": "Returns all budgets in id order. name and category take case-insensitive * globs.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Budgets"
                ],
                "summary": "List budgets",
                "operationId": "listBudgets",
                "parameters": [
                    {
                        "type": "string",
                        "example": "month*",
                        "description": "Name glob",
                        "name": "name",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "example": "food",
                        "description": "Category glob",
                        "name": "category",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.BudgetListResponse"
                        }
                    },
                    "500": {
                        "description": "Internal error",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorEnvelope"
                        }
                    }
                }
            },
            "post": {
                "description": "Creates a budget. With an Idempotency-Key, a retry within the TTL returns the\noriginally created budget with the Idempotent-Replayed header set.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Budgets"
                ],
                "summary": "Create a budget",
                "operationId": "createBudget",
                "parameters": [
                    {
                        "type": "string",
                        "example": "create-rent-2024-05",
                        "description": "Idempotency key",
                        "name": "Idempotency-Key",
                        "in": "header"
                    },
                    {
                        "description": "Budget to create",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/handlers.CreateBudgetRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/handlers.BudgetResponse"
                        },
                        "headers": {
                            "Idempotent-Replayed": {
                                "type": "string",
                                "description": "true when served from a stored result"
                            }
                        }
                    },
                    "400": {
                        "description": "Validation failed or invalid JSON",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorEnvelope"
                        }
                    },
                    "413": {
                        "description": "Request body too large",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorEnvelope"
                        }
                    },
                    "429": {
                        "description": "Rate limited",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorEnvelope"
                        }
                    }
                }
            }
        },
        "/budgets/error/database": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Diagnostics"
                ],
                "summary": "Raise a database error",
                "operationId": "simulateDatabaseError",
                "responses": {
                    "500": {
                        "description": "Failed to connect to database",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorEnvelope"
                        }
                    }
                }
            }
        },
        "/budgets/error/server": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Diagnostics"
                ],
                "summary": "Raise an unclassified error",
                "operationId": "simulateServerError",
                "responses": {
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorEnvelope"
                        }
                    }
                }
            }
        },
        "/budgets/{id}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Budgets"
                ],
                "summary": "Get a budget",
                "operationId": "getBudget",
                "parameters": [
                    {
                        "type": "integer",
                        "example": 1,
                        "description": "Budget ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.BudgetResponse"
                        }
                    },
                    "400": {
                        "description": "Budget ID must be a number",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorEnvelope"
                        }
                    },
                    "404": {
                        "description": "Budget not found",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorEnvelope"
                        }
                    }
                }
            },
            "put": {
                "description": "Applies the fields present in the body. Absent or null fields are left unchanged.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Budgets"
                ],
                "summary": "Update a budget",
                "operationId": "updateBudget",
                "parameters": [
                    {
                        "type": "integer",
                        "example": 1,
                        "description": "Budget ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Fields to change",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/handlers.UpdateBudgetRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.BudgetResponse"
                        }
                    },
                    "400": {
                        "description": "Validation failed or invalid JSON",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorEnvelope"
                        }
                    },
                    "404": {
                        "description": "Budget not found",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorEnvelope"
                        }
                    },
                    "409": {
                        "description": "Duplicate name",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorEnvelope"
                        }
                    }
                }
            },
            "delete": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Budgets"
                ],
                "summary": "Delete a budget",
                "operationId": "deleteBudget",
                "parameters": [
                    {
                        "type": "integer",
                        "example": 1,
                        "description": "Budget ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.EmptyResponse"
                        }
                    },
                    "400": {
                        "description": "Budget ID must be a number",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorEnvelope"
                        }
                    },
                    "404": {
                        "description": "Budget not found",
                        "schema": {
                            "$ref": "#/definitions/middleware.ErrorEnvelope"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "domain.Budget": {
            "type": "object",
            "properties": {
                "amount": {
                    "type": "number",
                    "example": 5000
                },
                "category": {
                    "type": "string",
                    "example": "general"
                },
                "id": {
                    "type": "integer",
                    "example": 1
                },
                "name": {
                    "type": "string",
                    "example": "Monthly Budget"
                }
            }
        },
        "handlers.BudgetListResponse": {
            "type": "object",
            "properties": {
                "count": {
                    "type": "integer",
                    "example": 2
                },
                "data": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/domain.Budget"
                    }
                },
                "success": {
                    "type": "boolean",
                    "example": true
                }
            }
        },
        "handlers.BudgetResponse": {
            "type": "object",
            "properties": {
                "data": {
                    "$ref": "#/definitions/domain.Budget"
                },
                "success": {
                    "type": "boolean",
                    "example": true
                }
            }
        },
        "handlers.CreateBudgetRequest": {
            "type": "object",
            "properties": {
                "amount": {
                    "type": "number",
                    "example": 250.5
                },
                "category": {
                    "type": "string",
                    "example": "leisure"
                },
                "name": {
                    "type": "string",
                    "example": "Travel"
                }
            }
        },
        "handlers.EmptyResponse": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "success": {
                    "type": "boolean",
                    "example": true
                }
            }
        },
                "success": {
                    "type": "boolean",
                    "example": true
                },
                "timestamp": {
                    "type": "string",
                    "example": "2024-05-01T12:00:00.000Z"
                }
            }
        },
        "handlers.UpdateBudgetRequest": {
            "type": "object",
            "properties": {
                "amount": {
                    "type": "number",
                    "example": 650
                },
                "category": {
                    "type": "string",
                    "example": "food"
                },
                "name": {
                    "type": "string",
                    "example": "Weekly Groceries"
                }
            }
        },
        "middleware.ErrorBody": {
            "type": "object",
            "properties": {
                "details": {
                    "$ref": "#/definitions/middleware.ErrorDetails"
                },
                "message": {
                    "type": "string",
                    "example": "Budget with ID 7 not found"
                },
                "requestId": {
                    "type": "string",
                    "example": "0b6f3c1e-2a77-4d0e-9f5a-8d1a4f3f2a10"
                },
                "stack": {
                    "type": "string"
                },
                "statusCode": {
                    "type": "integer",
                    "example": 404
                }
            }
        },
        "middleware.ErrorDetails": {
            "type": "object",
            "properties": {
                "cause": {
                    "type": "string"
                },
                "code": {
                    "type": "string"
                },
                "kind": {
                    "type": "string"
                },
                "type": {
                    "type": "string"
                }
            }
        },
        "middleware.ErrorEnvelope": {
            "type": "object",
            "properties": {
                "error": {
                    "$ref": "#/definitions/middleware.ErrorBody"
                },
                "success": {
                    "type": "boolean",
                    "example": false
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Budget API",
	Description:      "CRUD over budgets with a single error mapping funnel.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
