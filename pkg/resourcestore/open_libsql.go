//go:build cgo

package resourcestore

import (
	// Registers the "libsql" driver, which handles local files and remote
	// libsql:// URLs alike.
	_ "github.com/tursodatabase/go-libsql"
)

const remoteCapable = true
