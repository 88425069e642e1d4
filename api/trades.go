// Copyright (c) 2024 Nate Bag

package api

import (
	"time"

	"github.com/shopspring/decimal"
)

const TradeListPath = "/trench/trade/list"

type TradeListRequest struct {
	// Group restricts the listing to one group when non-empty.
	Group string

	// Limit caps the number of records returned; zero means no cap.
	Limit int
}

type TradeListResponseItem struct {
	UID     string
	GroupID string

	WalletID string
	Wallet   string

	Side      string
	TokenMint string
	Venue     string

	SolAmount   decimal.Decimal
	TokenAmount uint64

	Signature string

	Time time.Time
}

type TradeListResponse struct {
	Trades []*TradeListResponseItem
}

const LaunchListPath = "/trench/launch/list"

type LaunchListRequest struct {
}

type LaunchListResponseItem struct {
	WalletID string
	Wallet   string

	TokenMint string

	Time time.Time
}

type LaunchListResponse struct {
	Launches []*LaunchListResponseItem
}
