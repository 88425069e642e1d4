// Copyright (c) 2024 Nate Bag

package gobs

import (
	"fmt"
)

// NewByTypename creates a zero value of a persisted type from its name. Used
// by the db subcommands to pretty-print raw database values.
func NewByTypename(typename string) (any, error) {
	var v any
	switch typename {
	case "GroupConfig":
		v = new(GroupConfig)
	case "GroupSummary":
		v = new(GroupSummary)
	case "TradeRecord":
		v = new(TradeRecord)
	case "LaunchData":
		v = new(LaunchData)
	case "NameData":
		v = new(NameData)
	case "KeyValue":
		v = new(KeyValue)
	default:
		return nil, fmt.Errorf("unsupported type name %q", typename)
	}
	return v, nil
}
