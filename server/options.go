// Copyright (c) 2024 Nate Bag

package server

import (
	"os"
	"time"

	"github.com/shopspring/decimal"
)

type Options struct {
	// TreasuryAlertSOL is the treasury balance below which a Telegram
	// alert is sent. Zero disables the alert.
	TreasuryAlertSOL decimal.Decimal

	// TreasuryCheckInterval holds the amount of time between treasury
	// balance checks.
	TreasuryCheckInterval time.Duration

	// IdgenSeed fixes the trade record id sequence. Random when empty.
	IdgenSeed string
}

func (v *Options) setDefaults() {
	if v.TreasuryCheckInterval == 0 {
		v.TreasuryCheckInterval = 5 * time.Minute
	}
}

func (v *Options) Check() error {
	if v.TreasuryAlertSOL.IsNegative() {
		return os.ErrInvalid
	}
	return nil
}
