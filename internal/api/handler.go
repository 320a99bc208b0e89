package api

import (
	"log/slog"

	"github.com/shaiso/Conduit/internal/store"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	store  store.Store
	token  string
	logger *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	// Store — backend metadata store (обычно store.Local поверх репозиториев).
	Store store.Store

	// Token — bearer токен для /api/v1. Пустой — без авторизации.
	Token string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		store:  cfg.Store,
		token:  cfg.Token,
		logger: cfg.Logger,
	}
}
