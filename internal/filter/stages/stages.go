// Package stages provides the built-in candidate transforms. Importing it
// registers them with the filter package:
//
//	import _ "copilot/internal/filter/stages"
package stages

import (
	"copilot/internal/filter"
)

func init() {
	filter.Register(filter.StageRawInput, NewRawInput)
	filter.Register(filter.StageAutoSpacer, NewAutoSpacer)
}
