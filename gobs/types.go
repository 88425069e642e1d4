// Copyright (c) 2024 Nate Bag

// Package gobs holds all gob-encoded types persisted in the database. Types
// in this package must stay backward compatible; add new fields instead of
// changing the meaning of existing ones.
package gobs

import (
	"time"

	"github.com/shopspring/decimal"
)

// GroupConfig describes a bot group: a pool of burner wallets trading one
// target token. Persisted under the "/groups/" keyspace.
type GroupConfig struct {
	UID  string
	Name string

	// TokenMint is the base58 mint address of the target token.
	TokenMint string

	// NumWallets is fixed at creation time.
	NumWallets int

	// FundingSOL is the SOL amount transferred to each burner wallet on
	// start.
	FundingSOL decimal.Decimal

	// Pattern is a free-form trading pattern tag chosen by the operator.
	Pattern string

	MinSwapSOL decimal.Decimal
	MaxSwapSOL decimal.Decimal

	MinInterval time.Duration
	MaxInterval time.Duration

	// StealthFunding routes the initial funding through an external bridge
	// instead of a direct treasury transfer.
	StealthFunding bool

	CreatedAt time.Time
}

// GroupSummary is the lightweight runtime summary persisted on every
// lifecycle transition so that a restarted daemon can render prior state.
type GroupSummary struct {
	UID    string
	Status string

	WalletIDs []string

	NumTrades int64
	VolumeSOL decimal.Decimal

	StartedAt time.Time
	LastError string
}

// TradeRecord is one executed swap, appended to the "/trades/" keyspace.
type TradeRecord struct {
	UID     string
	GroupID string

	WalletID string
	Wallet   string // base58 address

	Side      string // "BUY" or "SELL"
	TokenMint string
	Venue     string

	SolAmount   decimal.Decimal
	TokenAmount uint64

	Signature string

	Time time.Time
}

// LaunchData marks a wallet that has created a token. Such wallets hold the
// launch authority required to claim creator fees later and are never
// deleted automatically.
type LaunchData struct {
	WalletID  string
	Wallet    string // base58 address
	TokenMint string
	Time      time.Time
}

// TelegramState remembers the chat ids of authorized users so that alerts
// can be delivered after a daemon restart.
type TelegramState struct {
	UserChatIDMap map[string]int64
}

type NameData struct {
	ID       string
	Name     string
	Typename string
}

type KeyValue struct {
	Key   string
	Value []byte
}
