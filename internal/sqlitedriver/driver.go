package sqlitedriver

import (
	"database/sql"

	"modernc.org/sqlite"
)

// DriverName is the database/sql name the driver is registered under.
const DriverName = "sqlite3"

func init() {
	sql.Register(DriverName, &sqlite.Driver{})
}
