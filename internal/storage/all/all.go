// Package all registers every storage backend with the storage factory.
//
// Import it for side effects from binaries that select a backend at runtime:
//
//	import _ "github.com/deya-hazra-maersk/TORI-Data-Processing/internal/storage/all"
package all

import (
	_ "github.com/deya-hazra-maersk/TORI-Data-Processing/internal/storage/mssql"
	_ "github.com/deya-hazra-maersk/TORI-Data-Processing/internal/storage/postgres"
	_ "github.com/deya-hazra-maersk/TORI-Data-Processing/internal/storage/sqlite"
)
