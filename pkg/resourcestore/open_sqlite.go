//go:build !cgo

package resourcestore

import (
	"database/sql"

	sqlite "modernc.org/sqlite"
)

// Pure-Go build: local SQLite files only. Remote libsql URLs need the cgo
// driver in open_libsql.go.
const remoteCapable = false

func init() {
	sql.Register(driverName, &sqlite.Driver{})
}
