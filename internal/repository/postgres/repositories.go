package postgres

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository"
)

// NewRepositories wires the per-variant postgres repositories
func NewRepositories(db *sql.DB, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		Regular: NewRegularOrderRepository(db, logger),
		Custom:  NewCustomOrderRepository(db, logger),
	}
}
