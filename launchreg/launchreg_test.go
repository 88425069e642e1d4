// Copyright (c) 2024 Nate Bag

package launchreg

import (
	"context"
	"testing"

	"github.com/bvkgo/kv/kvmemdb"
)

func TestMarkAndLookup(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	r := New(db)

	ok, err := r.IsLaunchWallet(ctx, "addr1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("unmarked wallet reported as launch wallet")
	}

	if err := r.Mark(ctx, "w1", "addr1", "mint1"); err != nil {
		t.Fatal(err)
	}
	// Marking twice is idempotent.
	if err := r.Mark(ctx, "w1", "addr1", "mint1"); err != nil {
		t.Fatal(err)
	}

	ok, err = r.IsLaunchWallet(ctx, "addr1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("marked wallet not reported as launch wallet")
	}

	// A fresh registry over the same database must see the mark.
	r2 := New(db)
	ok, err = r2.IsLaunchWallet(ctx, "addr1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("mark did not persist")
	}

	list, err := r2.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].WalletID != "w1" || list[0].TokenMint != "mint1" {
		t.Fatalf("unexpected launch list: %+v", list)
	}
}

func TestCreateLogDetection(t *testing.T) {
	logs := []string{
		"Program 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P invoke [1]",
		"Program log: Instruction: Create",
		"Program 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P success",
	}
	if !hasCreateLog(logs) {
		t.Fatalf("create instruction not detected")
	}
	if hasCreateLog([]string{"Program log: Instruction: Buy"}) {
		t.Fatalf("buy instruction detected as create")
	}
}
