package server

// @title Status Page API
// @version 1.0
// @description REST API for multi-tenant status pages with realtime updates over websocket and SSE.
// @description
// @description Staff endpoints identify the acting user with the X-User-ID header.
// @description Every committed write is announced to the organization's room.
//
// @BasePath /
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication (optional, configurable)
