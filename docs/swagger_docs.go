// Package docs holds the general Swagger annotations of the LEGION API.
// Endpoint annotations live on the handlers in internal/api/handlers.
//
//go:generate swag init -g swagger_docs.go -d ./,../internal/api/handlers -o ./swagger --parseDependency --parseInternal --outputTypes go
package docs

// @title LEGION API
// @version 1.0
// @description Network reconnaissance job engine: scan jobs, host inventory, exports and live scan events.
// @description
// @description ## Authentication
// @description When authentication is enabled, include your API key in the `X-API-Key` header
// @description or as an `Authorization: Bearer` token. Health, version, metrics and these docs are public.
//
// @security ApiKeyAuth
//
// @contact.name LEGION
// @contact.url https://github.com/NubleX/LEGION2
//
// @license.name GPL-3.0
//
// @host localhost:8080
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication
