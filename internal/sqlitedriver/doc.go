// Package sqlitedriver registers the pure-Go modernc.org/sqlite driver under
// the name "sqlite3", so warp builds without CGO on every platform.
//
// Import this package for its side effects only:
//
//	import _ "github.com/teradata-labs/warp/internal/sqlitedriver"
package sqlitedriver
