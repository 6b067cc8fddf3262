// Package all registers every repository backend. Import it for its side
// effects from binaries that select the backend at runtime:
//
//	import _ "github.com/smonier/importContentFromJson/internal/repository/all"
package all

import (
	_ "github.com/smonier/importContentFromJson/internal/repository/httpapi"
	_ "github.com/smonier/importContentFromJson/internal/repository/mssql"
	_ "github.com/smonier/importContentFromJson/internal/repository/postgres"
	_ "github.com/smonier/importContentFromJson/internal/repository/sqlite"
)
