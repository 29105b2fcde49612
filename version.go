package casebook

import _ "embed"

// Version is the released version of casebook.
//
//go:embed VERSION
var Version string
