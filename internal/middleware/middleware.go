package middleware

import (
	"github.com/digestmail/digestmail/internal/config"
	"github.com/digestmail/digestmail/internal/logger"
)

// Middleware holds all HTTP middleware
type Middleware struct {
	log *logger.Logger
	cfg *config.Config
}

// New creates a new Middleware instance
func New(log *logger.Logger, cfg *config.Config) *Middleware {
	return &Middleware{
		log: log,
		cfg: cfg,
	}
}
