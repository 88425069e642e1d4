// Copyright (c) 2024 Nate Bag

// Package api defines the JSON request/response types exchanged between the
// command-line client and the daemon.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

const GroupCreatePath = "/trench/group/create"

type GroupCreateRequest struct {
	Name      string
	TokenMint string

	NumWallets int

	FundingSOL decimal.Decimal

	Pattern string

	MinSwapSOL decimal.Decimal
	MaxSwapSOL decimal.Decimal

	MinInterval time.Duration
	MaxInterval time.Duration

	StealthFunding bool
}

type GroupCreateResponse struct {
	UID string
}

const GroupUpdatePath = "/trench/group/update"

type GroupUpdateRequest struct {
	Group string

	FundingSOL decimal.Decimal

	Pattern string

	MinSwapSOL decimal.Decimal
	MaxSwapSOL decimal.Decimal

	MinInterval time.Duration
	MaxInterval time.Duration

	StealthFunding bool
}

type GroupUpdateResponse struct {
	UID string
}

const GroupDeletePath = "/trench/group/delete"

type GroupDeleteRequest struct {
	Group string
}

type GroupDeleteResponse struct {
	UID string
}

const GroupListPath = "/trench/group/list"

type GroupListRequest struct {
}

type GroupListResponseItem struct {
	UID  string
	Name string

	TokenMint string

	NumWallets int

	Status string

	NumTrades int64
	VolumeSOL decimal.Decimal
}

type GroupListResponse struct {
	Groups []*GroupListResponseItem
}

const GroupStatusPath = "/trench/group/status"

type GroupStatusRequest struct {
	Group string
}

type GroupStatusResponse struct {
	UID  string
	Name string

	Status string

	WalletIDs []string

	NumTrades int64
	VolumeSOL decimal.Decimal

	StartedAt time.Time

	LastError string
}

// Outcome mirrors the lifecycle outcome counts of a mutating group
// operation.
type Outcome struct {
	WalletsCreated int
	WalletsFunded  int
	LoopsArmed     int

	TokensSold int
	SellErrors int

	WalletsSwept int
	SweepErrors  int

	WalletsDeleted   int
	WalletsProtected int
	WalletsKept      int

	Errors []string
}

const GroupStartPath = "/trench/group/start"

type GroupStartRequest struct {
	Group string
}

type GroupStartResponse struct {
	UID     string
	Outcome *Outcome
}

const GroupStopPath = "/trench/group/stop"

type GroupStopRequest struct {
	Group string
}

type GroupStopResponse struct {
	UID     string
	Outcome *Outcome
}

const GroupResumePath = "/trench/group/resume"

type GroupResumeRequest struct {
	Group string
}

type GroupResumeResponse struct {
	UID     string
	Outcome *Outcome
}

const GroupCleanupPath = "/trench/group/cleanup"

type GroupCleanupRequest struct {
	Group string
}

type GroupCleanupResponse struct {
	UID     string
	Outcome *Outcome
}
