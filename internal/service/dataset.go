package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joeblew999/plat-flowmap/internal/db"
	"github.com/joeblew999/plat-flowmap/internal/flow"
)

// ErrNoDatabase is returned when DuckDB could not be opened.
var ErrNoDatabase = errors.New("database not available")

// DatasetService reads route rows through DuckDB, either from a SQL query or
// from a source file in the data directory.
type DatasetService struct {
	db      *sql.DB
	sources *SourceService
}

// NewDatasetService creates a dataset service; conn may be nil.
func NewDatasetService(conn *sql.DB, sources *SourceService) *DatasetService {
	return &DatasetService{db: conn, sources: sources}
}

// Available reports whether a database connection is present.
func (s *DatasetService) Available() bool { return s.db != nil }

// Query runs a SQL query and binds its columns to roles.
func (s *DatasetService) Query(ctx context.Context, query string, roles db.RoleMap) (flow.Columns, error) {
	if s.db == nil {
		return flow.Columns{}, ErrNoDatabase
	}
	return db.LoadColumns(ctx, s.db, query, roles)
}

// LoadSource reads every row of a source file and binds its columns to roles.
func (s *DatasetService) LoadSource(ctx context.Context, filename string, roles db.RoleMap) (flow.Columns, error) {
	if s.db == nil {
		return flow.Columns{}, ErrNoDatabase
	}
	path, err := s.sources.Path(filename)
	if err != nil {
		return flow.Columns{}, err
	}
	query, err := db.SourceQuery(path)
	if err != nil {
		return flow.Columns{}, err
	}
	cols, err := db.LoadColumns(ctx, s.db, query, roles)
	if err != nil {
		return flow.Columns{}, fmt.Errorf("load %s: %w", filename, err)
	}
	return cols, nil
}
