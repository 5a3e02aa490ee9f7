package main

// General API documentation for swaggo. Regenerate internal/httpapi/docs with
// swag init -g cmd/fluxd/docs.go -o internal/httpapi/docs.
//
// @title           fluxd API
// @version         1.0
// @description     Tool-call API for local FLUX image generation with lazy model loading and idle unloading.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
