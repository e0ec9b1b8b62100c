// Package docs 提供 swagger 文档，可通过 swag init -g main.go 重新生成
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
        "/api/health": {
            "get": {"tags": ["系统"], "summary": "健康检查", "responses": {"200": {"description": "OK"}, "503": {"description": "Database unavailable"}}}
        },
        "/api/auth/register": {
            "post": {"tags": ["认证"], "summary": "注册新用户", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/service.RegisterRequest"}}], "responses": {"201": {"description": "Created"}, "409": {"description": "邮箱已被注册"}}}
        },
        "/api/auth/login": {
            "post": {"tags": ["认证"], "summary": "用户登录", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/service.LoginRequest"}}], "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/api/auth/admin/login": {
            "post": {"tags": ["认证"], "summary": "管理员登录", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/service.AdminLoginRequest"}}], "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/api/quizzes/available": {
            "get": {"security": [{"ApiKeyAuth": []}], "tags": ["测验"], "summary": "当前可答的测验", "responses": {"200": {"description": "OK"}}}
        },
        "/api/quizzes/{id}/availability": {
            "get": {"security": [{"ApiKeyAuth": []}], "tags": ["测验"], "summary": "检查测验是否可开始", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/quizzes/{id}/attempts": {
            "post": {"security": [{"ApiKeyAuth": []}], "tags": ["答题"], "summary": "开始答题", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "续答"}, "201": {"description": "新建"}, "400": {"description": "测验不可用"}}}
        },
        "/api/attempts/{id}/questions": {
            "get": {"security": [{"ApiKeyAuth": []}], "tags": ["答题"], "summary": "获取答题题目", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/attempts/{id}/submit": {
            "post": {"security": [{"ApiKeyAuth": []}], "tags": ["答题"], "summary": "提交答题", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/service.SubmitRequest"}}], "responses": {"200": {"description": "OK"}, "409": {"description": "已提交"}}}
        },
        "/api/attempts/{id}/results": {
            "get": {"security": [{"ApiKeyAuth": []}], "tags": ["答题"], "summary": "答题结果", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/exports/my-attempts": {
            "post": {"security": [{"ApiKeyAuth": []}], "produces": ["text/csv"], "tags": ["导出"], "summary": "导出我的答题记录", "responses": {"200": {"description": "CSV 文件"}}}
        }
    },
    "definitions": {
        "service.RegisterRequest": {
            "type": "object",
            "required": ["email", "password", "fullName", "qualification", "dateOfBirth"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 6},
                "fullName": {"type": "string"},
                "qualification": {"type": "string"},
                "dateOfBirth": {"type": "string", "example": "2001-05-04"}
            }
        },
        "service.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "service.AdminLoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}}
        },
        "service.SubmittedAnswer": {
            "type": "object",
            "properties": {"questionId": {"type": "integer"}, "selectedOption": {"type": "integer"}}
        },
        "service.SubmitRequest": {
            "type": "object",
            "properties": {
                "answers": {"type": "array", "items": {"$ref": "#/definitions/service.SubmittedAnswer"}},
                "timeTaken": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Quiz Master 后端 API",
	Description:      "Quiz Master 测验平台的后端服务器。",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
