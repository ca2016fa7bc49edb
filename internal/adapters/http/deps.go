package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geowire/internal/adapters/postgres"
	"github.com/samirrijal/geowire/internal/adapters/valkey"
	"github.com/samirrijal/geowire/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Convert  *usecases.ConvertService
	Features *usecases.FeatureService
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache

	// DocsPath is the OpenAPI document served under /docs. Empty means
	// api/openapi.yaml relative to the working directory.
	DocsPath string
}
