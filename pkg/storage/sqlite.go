// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/internal/sqlitedriver"
	"github.com/teradata-labs/warp/pkg/observability"
	"github.com/teradata-labs/warp/pkg/types"
)

// SQLiteConfig configures a SQLiteStore.
type SQLiteConfig struct {
	// Path of the database file. Parent directories are created.
	Path string
	// BusyTimeout is how long a writer waits on a locked database (default 5s).
	BusyTimeout time.Duration
	Tracer      observability.Tracer
	Logger      *zap.Logger
}

// SQLiteStore persists agents in a SQLite database in WAL mode.
// All operations are traced.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	mu     sync.RWMutex
	tracer observability.Tracer
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) the database and applies
// pending migrations.
func NewSQLiteStore(ctx context.Context, cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite store requires a path")
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoOpTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open(sqlitedriver.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	migrator, err := NewMigrator(db, cfg.Tracer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrator.MigrateUp(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	cfg.Logger.Debug("Agent store opened",
		zap.String("path", cfg.Path),
		zap.Int("schema_version", migrator.Latest()))

	return &SQLiteStore{
		db:     db,
		path:   cfg.Path,
		tracer: cfg.Tracer,
		logger: cfg.Logger,
	}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Save(ctx context.Context, agent *types.AgentContext) error {
	if err := validate(agent); err != nil {
		return err
	}
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanStoreSave)
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrAgentID, agent.AgentID)
	span.SetAttribute(observability.AttrExecutionID, agent.ExecutionID)
	span.SetAttribute(observability.AttrAgentState, string(agent.State))

	contextJSON, err := json.Marshal(agent)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal agent context: %w", err)
	}

	// The WHERE clause turns a regressing update into a no-op, which is
	// detected through RowsAffected.
	query := `
		INSERT INTO agents (agent_id, execution_id, name, user_id, state, iterations, cost, context_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			execution_id = excluded.execution_id,
			name = excluded.name,
			user_id = excluded.user_id,
			state = excluded.state,
			iterations = excluded.iterations,
			cost = excluded.cost,
			context_json = excluded.context_json,
			updated_at = excluded.updated_at
		WHERE agents.execution_id <> excluded.execution_id
			OR (excluded.iterations >= agents.iterations AND excluded.cost >= agents.cost)
	`

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, query,
		agent.AgentID,
		agent.ExecutionID,
		nullable(agent.Name),
		nullable(agent.UserID),
		string(agent.State),
		agent.Iterations,
		agent.Cost,
		string(contextJSON),
		agent.CreatedAt.UnixMilli(),
		agent.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save agent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save agent: %w", err)
	}
	if affected == 0 {
		err := regression(agent)
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, agentID string) (*types.AgentContext, error) {
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanStoreLoad)
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrAgentID, agentID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var contextJSON string
	err := s.db.QueryRowContext(ctx, "SELECT context_json FROM agents WHERE agent_id = ?", agentID).Scan(&contextJSON)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttribute("found", false)
		return nil, notFound(agentID)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}

	agent, err := decodeAgent(contextJSON)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttribute("found", true)
	return agent, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, agentIDs ...string) (int, error) {
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanStoreDelete)
	defer s.tracer.EndSpan(span)
	span.SetAttribute("count", len(agentIDs))
	if len(agentIDs) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders, args := inClause(agentIDs)
	if _, err := tx.ExecContext(ctx, "DELETE FROM iterations WHERE agent_id IN ("+placeholders+")", args...); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to delete iterations: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM agents WHERE agent_id IN ("+placeholders+")", args...)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to delete agents: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to delete agents: %w", err)
	}
	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	span.SetAttribute("deleted", deleted)
	return int(deleted), nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*types.AgentContext, error) {
	return s.query(ctx, "SELECT context_json FROM agents ORDER BY created_at, agent_id")
}

func (s *SQLiteStore) ListByState(ctx context.Context, states ...types.State) ([]*types.AgentContext, error) {
	if len(states) == 0 {
		return []*types.AgentContext{}, nil
	}
	values := make([]string, len(states))
	for i, st := range states {
		values[i] = string(st)
	}
	placeholders, args := inClause(values)
	return s.query(ctx, "SELECT context_json FROM agents WHERE state IN ("+placeholders+") ORDER BY created_at, agent_id", args...)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]*types.AgentContext, error) {
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanStoreList)
	defer s.tracer.EndSpan(span)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	agents := []*types.AgentContext{}
	for rows.Next() {
		var contextJSON string
		if err := rows.Scan(&contextJSON); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agent, err := decodeAgent(contextJSON)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	span.SetAttribute("count", len(agents))
	return agents, nil
}

func (s *SQLiteStore) SaveIteration(ctx context.Context, record *types.IterationRecord) error {
	if record == nil || record.AgentID == "" {
		return errors.New("iteration record requires an agent id")
	}
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanStoreIteration)
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrAgentID, record.AgentID)
	span.SetAttribute(observability.AttrIteration, record.Iteration)

	recordJSON, err := json.Marshal(record)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal iteration record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO iterations (agent_id, execution_id, iteration, cost, record_json, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		record.AgentID, record.ExecutionID, record.Iteration, record.Cost, string(recordJSON), record.CreatedAt.UnixMilli())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save iteration record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListIterations(ctx context.Context, agentID string) ([]*types.IterationRecord, error) {
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanStoreList)
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrAgentID, agentID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT record_json FROM iterations WHERE agent_id = ? ORDER BY id", agentID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list iterations: %w", err)
	}
	defer rows.Close()

	records := []*types.IterationRecord{}
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan iteration record: %w", err)
		}
		var record types.IterationRecord
		if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to unmarshal iteration record: %w", err)
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list iterations: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeAgent(contextJSON string) (*types.AgentContext, error) {
	var agent types.AgentContext
	if err := json.Unmarshal([]byte(contextJSON), &agent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent context: %w", err)
	}
	return &agent, nil
}

// nullable maps empty strings to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func inClause(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(values)), ","), args
}
