// Package docs registers the OpenAPI document served at /swagger.
// Regenerate it from the handler annotations with:
//
//	swag init -g cmd/server/main.go -o docs
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/auth/register": {"post": {"tags": ["Auth"], "operationId": "register", "summary": "Create an account and start a session", "responses": {"201": {"description": "Created"}, "400": {"description": "Validation failed"}, "409": {"description": "Email or handle taken"}}}},
        "/auth/login": {"post": {"tags": ["Auth"], "operationId": "login", "summary": "Start a session by email or handle", "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials"}}}},
        "/auth/logout": {"post": {"tags": ["Auth"], "operationId": "logout", "summary": "Clear the session cookie", "responses": {"204": {"description": "No Content"}}}},
        "/me": {
            "get": {"tags": ["Users"], "operationId": "me", "summary": "Current user", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}},
            "patch": {"tags": ["Users"], "operationId": "updateMe", "summary": "Edit the current profile", "responses": {"200": {"description": "OK"}, "400": {"description": "Validation failed"}, "409": {"description": "Handle taken"}}}
        },
        "/search-users": {"get": {"tags": ["Users"], "operationId": "searchUsers", "summary": "Find people to talk to", "parameters": [{"type": "string", "name": "q", "in": "query"}], "responses": {"200": {"description": "OK"}}}},
        "/conversations": {"get": {"tags": ["Conversations"], "operationId": "listConversations", "summary": "Inbox, most recent first", "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}}}},
        "/conversations/start": {"post": {"tags": ["Conversations"], "operationId": "startConversation", "summary": "Open (or reuse) a conversation with a user", "responses": {"201": {"description": "Created"}, "400": {"description": "Validation failed"}, "404": {"description": "Unknown user"}}}},
        "/conversations/{id}/messages": {"get": {"tags": ["Messages"], "operationId": "listMessages", "summary": "Messages visible to the caller", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}, "404": {"description": "Not found"}}}},
        "/conversations/{id}/messages/send": {"post": {"tags": ["Messages"], "operationId": "sendMessage", "summary": "Append a message", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}, {"type": "string", "name": "Idempotency-Key", "in": "header"}], "responses": {"201": {"description": "Created"}, "400": {"description": "Validation failed"}, "404": {"description": "Not found"}}}},
        "/messages/{id}/delete": {"post": {"tags": ["Messages"], "operationId": "deleteMessage", "summary": "Hide for self or delete for everyone", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid scope or already deleted"}, "403": {"description": "Not the author"}, "404": {"description": "Not found"}}}},
        "/notifications": {"get": {"tags": ["Notifications"], "operationId": "listNotifications", "summary": "Notification feed", "parameters": [{"type": "string", "name": "type", "in": "query"}, {"type": "string", "name": "q", "in": "query"}], "responses": {"200": {"description": "OK"}}}},
        "/notifications/clear": {"post": {"tags": ["Notifications"], "operationId": "clearNotifications", "summary": "Mark everything up to now as read", "responses": {"200": {"description": "OK"}}}},
        "/posts": {
            "get": {"tags": ["Timeline"], "operationId": "listPosts", "summary": "Timeline page", "parameters": [{"type": "integer", "name": "page", "in": "query"}, {"type": "integer", "name": "page_size", "in": "query"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Timeline"], "operationId": "createPost", "summary": "Publish a post", "responses": {"201": {"description": "Created"}, "400": {"description": "Validation failed"}}}
        },
        "/posts/{id}": {"delete": {"tags": ["Timeline"], "operationId": "deletePost", "summary": "Delete own post", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}, "403": {"description": "Not the author"}, "404": {"description": "Not found"}}}},
        "/posts/{id}/like": {"post": {"tags": ["Timeline"], "operationId": "toggleLike", "summary": "Like or unlike", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}},
        "/posts/{id}/comments": {"post": {"tags": ["Timeline"], "operationId": "createComment", "summary": "Comment on a post", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}, "404": {"description": "Not found"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Coony Chat API",
	Description:      "Private conversations, realtime delivery, notifications and a small social timeline.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
