package appfs

import "embed"

// FS holds the assets shipped inside the binaries: SQL migrations, email templates and the common passwords list.
//
//go:embed migrations all:templates common-passwords.txt
var FS embed.FS
