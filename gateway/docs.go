package gateway

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{.Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "consumes": ["application/json"],
    "produces": ["application/json"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/signup": {
            "post": {
                "summary": "Create an account and receive a token",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/SignupInput"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/AuthResponse"}},
                    "400": {"description": "Invalid input or user already exists", "schema": {"$ref": "#/definitions/Message"}}
                }
            }
        },
        "/login": {
            "post": {
                "summary": "Exchange credentials for a token",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/LoginInput"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AuthResponse"}},
                    "400": {"description": "Invalid email or password", "schema": {"$ref": "#/definitions/Message"}}
                }
            }
        },
        "/logout": {
            "post": {
                "summary": "Revoke the presented token",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthenticated", "schema": {"$ref": "#/definitions/Message"}}}
            }
        },
        "/profile": {
            "get": {
                "summary": "Current user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthenticated", "schema": {"$ref": "#/definitions/Message"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/Message"}}
                }
            }
        },
        "/order": {
            "post": {
                "summary": "Place an order with a client-supplied total",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "header", "name": "Idempotency-Key", "type": "string", "required": false},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/OrderInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/OrderResponse"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/Message"}}
                }
            }
        },
        "/checkout": {
            "post": {
                "summary": "Idempotent checkout: price the items, place the order, empty the cart",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "header", "name": "Idempotency-Key", "type": "string", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/OrderInput"}}
                ],
                "responses": {
                    "200": {"description": "Replay of an earlier attempt", "schema": {"$ref": "#/definitions/OrderResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/OrderResponse"}},
                    "400": {"description": "Invalid input or key reused for a different order", "schema": {"$ref": "#/definitions/Message"}}
                }
            }
        },
        "/orders": {
            "get": {
                "summary": "Orders of the current user, oldest first",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/orders/{id}": {
            "get": {
                "summary": "One order of the current user",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/OrderResponse"}},
                    "400": {"description": "Invalid order ID", "schema": {"$ref": "#/definitions/Message"}},
                    "404": {"description": "Order not found", "schema": {"$ref": "#/definitions/Message"}}
                }
            }
        },
        "/cart": {
            "get": {
                "summary": "Server copy of the cart, null when never written",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "summary": "Replace the whole cart",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/CartInput"}}],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/Message"}}
                }
            }
        }
    },
    "definitions": {
        "Message": {"type": "object", "properties": {"message": {"type": "string"}}},
        "SignupInput": {
            "type": "object",
            "required": ["name", "email", "password"],
            "properties": {
                "name": {"type": "string"},
                "lastname": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "LoginInput": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "PublicUser": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "lastname": {"type": "string"},
                "email": {"type": "string"}
            }
        },
        "AuthResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "user": {"$ref": "#/definitions/PublicUser"},
                "token": {"type": "string"}
            }
        },
        "CartItem": {
            "type": "object",
            "properties": {
                "productId": {"type": "string"},
                "name": {"type": "string"},
                "quantity": {"type": "integer", "minimum": 1},
                "price": {"type": "number", "minimum": 0}
            }
        },
        "CartInput": {
            "type": "object",
            "properties": {"items": {"type": "array", "items": {"$ref": "#/definitions/CartItem"}}}
        },
        "OrderItem": {
            "type": "object",
            "properties": {
                "productId": {"type": "string"},
                "name": {"type": "string"},
                "quantity": {"type": "integer", "minimum": 1},
                "price": {"type": "number", "minimum": 0},
                "image": {"type": "string"},
                "selectedSize": {"type": "string"},
                "selectedColor": {"type": "string"}
            }
        },
        "OrderInput": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/OrderItem"}},
                "total": {"type": "number"},
                "address": {"type": "string"},
                "customerName": {"type": "string"},
                "customerPhone": {"type": "string"}
            }
        },
        "Order": {
            "type": "object",
            "properties": {
                "_id": {"type": "string"},
                "userId": {"type": "string"},
                "customerName": {"type": "string"},
                "customerPhone": {"type": "string"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/OrderItem"}},
                "subtotal": {"type": "number"},
                "shipping": {"type": "number"},
                "total": {"type": "number"},
                "address": {"type": "string"},
                "status": {"type": "string", "enum": ["pending"]},
                "createdAt": {"type": "string", "format": "date-time"}
            }
        },
        "OrderResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}, "order": {"$ref": "#/definitions/Order"}}
        }
    }
}`

// SwaggerInfo describes the API served under /api.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Storefront API",
	Description:      "Accounts, carts and orders for the storefront.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
