// Package store persists compilation runs in a Postgres database.
// The store is optional - it is only created when a database URL is configured.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func New(databaseUrl string, customizers ...func(*Options)) (*Store, error) {
	if databaseUrl == "" {
		return nil, errors.New("database URL is empty")
	}

	options := NewOptions()
	for _, customizer := range customizers {
		customizer(&options)
	}

	pgPoolConfig, err := pgxpool.ParseConfig(databaseUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %v", err)
	}

	if _, ok := pgPoolConfig.ConnConfig.RuntimeParams["application_name"]; !ok {
		pgPoolConfig.ConnConfig.RuntimeParams["application_name"] = options.ApplicationName
	}

	pgPoolCtx, pgPoolCancel := context.WithTimeout(context.Background(), options.Timeout)
	defer pgPoolCancel()

	pgPool, err := pgxpool.NewWithConfig(pgPoolCtx, pgPoolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %v", err)
	}

	store := Store{pgPool: pgPool, timeout: options.Timeout}

	if err := store.prepareDatabase(); err != nil {
		store.Shutdown()
		return nil, fmt.Errorf("failed to prepare database: %v", err)
	}

	return &store, nil
}

func NewOptions() Options {
	return Options{
		ApplicationName: "bpmn-sol",
		Timeout:         30 * time.Second,
	}
}

type Options struct {
	ApplicationName string        // Value of the application_name connection parameter.
	Timeout         time.Duration // Time limit for store operations.
}

type Store struct {
	pgPool  *pgxpool.Pool
	timeout time.Duration
}

func (s *Store) Shutdown() {
	s.pgPool.Close()
}

func (s *Store) prepareDatabase() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.pgPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS compilation (
	id BIGSERIAL PRIMARY KEY,
	contract_name TEXT NOT NULL,
	diagram_path TEXT NOT NULL,
	artifact_sha256 TEXT NOT NULL,
	slither_finding_count INTEGER NOT NULL,
	custom_finding_count INTEGER NOT NULL,
	has_errors BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)
`)
	return err
}

// Compilation is one recorded compilation run.
type Compilation struct {
	Id                  int64
	ContractName        string
	DiagramPath         string
	ArtifactSha256      string
	SlitherFindingCount int
	CustomFindingCount  int
	HasErrors           bool
	CreatedAt           time.Time
}

// Insert records a compilation run.
func (s *Store) Insert(ctx context.Context, compilation *Compilation) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := s.pgPool.QueryRow(ctx, `
INSERT INTO compilation (
	contract_name,
	diagram_path,
	artifact_sha256,
	slither_finding_count,
	custom_finding_count,
	has_errors,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id
`,
		compilation.ContractName,
		compilation.DiagramPath,
		compilation.ArtifactSha256,
		compilation.SlitherFindingCount,
		compilation.CustomFindingCount,
		compilation.HasErrors,
		compilation.CreatedAt,
	)

	if err := row.Scan(&compilation.Id); err != nil {
		return fmt.Errorf("failed to insert compilation: %v", err)
	}
	return nil
}

// Query returns the most recent compilation runs, newest first.
func (s *Store) Query(ctx context.Context, limit int) ([]Compilation, error) {
	if limit <= 0 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pgPool.Query(ctx, `
SELECT
	id,
	contract_name,
	diagram_path,
	artifact_sha256,
	slither_finding_count,
	custom_finding_count,
	has_errors,
	created_at
FROM compilation
ORDER BY created_at DESC, id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query compilations: %v", err)
	}

	defer rows.Close()

	var compilations []Compilation
	for rows.Next() {
		var compilation Compilation
		if err := rows.Scan(
			&compilation.Id,
			&compilation.ContractName,
			&compilation.DiagramPath,
			&compilation.ArtifactSha256,
			&compilation.SlitherFindingCount,
			&compilation.CustomFindingCount,
			&compilation.HasErrors,
			&compilation.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan compilation: %v", err)
		}
		compilations = append(compilations, compilation)
	}

	return compilations, rows.Err()
}
