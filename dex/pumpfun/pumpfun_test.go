// Copyright (c) 2024 Nate Bag

package pumpfun

import "testing"

func TestCurvePricing(t *testing.T) {
	curve := &BondingCurve{
		VirtualTokenReserves: 1_073_000_000_000_000,
		VirtualSolReserves:   30_000_000_000,
		RealTokenReserves:    793_100_000_000_000,
	}

	out := curve.buyOut(1_000_000_000)
	if out == 0 {
		t.Fatalf("buy quote is zero")
	}
	want := uint64(1_000_000_000) * (curve.VirtualTokenReserves / (curve.VirtualSolReserves + 1_000_000_000))
	// Integer rounding differs between the two orders of operations, so
	// only the magnitude is checked.
	if out < want/2 || out > want*2 {
		t.Fatalf("buy quote %d is not near %d", out, want)
	}

	back := curve.sellOut(out)
	if back == 0 || back > 1_000_000_000 {
		t.Fatalf("selling the bought amount returned %d lamports", back)
	}
}

func TestCurveBuyCappedByRealReserves(t *testing.T) {
	curve := &BondingCurve{
		VirtualTokenReserves: 1_000_000,
		VirtualSolReserves:   1_000,
		RealTokenReserves:    10,
	}
	if out := curve.buyOut(1_000_000); out != 10 {
		t.Fatalf("buy quote %d exceeds real reserves", out)
	}
}

func TestCurveEmptyReserves(t *testing.T) {
	curve := new(BondingCurve)
	if out := curve.buyOut(100); out != 0 {
		t.Fatalf("buy quote on empty curve returned %d", out)
	}
	if out := curve.sellOut(100); out != 0 {
		t.Fatalf("sell quote on empty curve returned %d", out)
	}
}
