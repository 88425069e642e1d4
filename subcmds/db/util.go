// Copyright (c) 2024 Nate Bag

package db

import (
	"fmt"

	"github.com/natebag/trenchtools/gobs"
)

func TypeNameValue(typename string) (any, error) {
	var v any
	switch typename {
	case "GroupConfig":
		v = new(gobs.GroupConfig)
	case "GroupSummary":
		v = new(gobs.GroupSummary)
	case "TradeRecord":
		v = new(gobs.TradeRecord)
	case "LaunchData":
		v = new(gobs.LaunchData)
	case "NameData":
		v = new(gobs.NameData)
	case "KeyValue":
		v = new(gobs.KeyValue)
	case "TelegramState":
		v = new(gobs.TelegramState)
	default:
		return nil, fmt.Errorf("unsupported type name %q", typename)
	}
	return v, nil
}
