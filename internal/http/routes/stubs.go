package routes

import "github.com/jmylchreest/erasure-api/internal/service"

// StubHandlers returns handlers without any backing services.
// They are only used for OpenAPI generation, where Huma extracts type
// information from function signatures and never calls them.
func StubHandlers() *Handlers {
	return NewHandlers(&service.Services{}, nil)
}
