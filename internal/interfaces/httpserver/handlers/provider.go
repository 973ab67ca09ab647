package handlers

import (
	"github.com/rs/zerolog"

	"github.com/postora/postora-server/internal/config"
	domain "github.com/postora/postora-server/internal/domain/upload"
)

// Provider wires HTTP handlers.
type Provider struct {
	Upload *UploadHandler
}

func NewProvider(cfg *config.Config, service *domain.Service, log zerolog.Logger) *Provider {
	return &Provider{
		Upload: NewUploadHandler(cfg, service, log),
	}
}
