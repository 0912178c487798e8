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
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/internal/sqlitedriver"
)

// Backup writes a consistent copy of the database next to it using
// VACUUM INTO, verifies it, and returns its path. Reads and writes on the
// store may continue while the copy is made.
func (s *SQLiteStore) Backup(ctx context.Context) (string, error) {
	backupPath := s.path + ".backup." + time.Now().UTC().Format("20060102T150405")

	s.mu.RLock()
	_, err := s.db.ExecContext(ctx, "VACUUM INTO ?", backupPath)
	s.mu.RUnlock()
	if err != nil {
		_ = os.Remove(backupPath)
		return "", fmt.Errorf("backup: vacuum into %q: %w", backupPath, err)
	}

	if err := VerifyBackup(ctx, backupPath); err != nil {
		_ = os.Remove(backupPath)
		return "", fmt.Errorf("backup: verification failed for %q: %w", backupPath, err)
	}
	s.logger.Info("Agent store backed up", zap.String("path", backupPath))
	return backupPath, nil
}

// VerifyBackup runs PRAGMA integrity_check against a database file.
func VerifyBackup(ctx context.Context, path string) error {
	db, err := sql.Open(sqlitedriver.DriverName, path)
	if err != nil {
		return fmt.Errorf("verify backup: open %q: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("verify backup: integrity check on %q: %w", path, err)
	}
	if result != "ok" {
		return fmt.Errorf("verify backup: integrity check failed on %q: %s", path, result)
	}
	return nil
}
