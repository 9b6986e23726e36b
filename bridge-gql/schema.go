package bridgegql

import (
	_ "embed"
)

//go:embed schema.gql
var Schema string
