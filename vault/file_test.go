// Copyright (c) 2024 Nate Bag

package vault

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestLockedVault(t *testing.T) {
	ctx := context.Background()
	v := NewFile(filepath.Join(t.TempDir(), "vault.jwe"))

	if !v.Locked() {
		t.Fatalf("new vault must start locked")
	}
	if _, err := v.List(ctx); !errors.Is(err, ErrLocked) {
		t.Fatalf("want ErrLocked, got %v", err)
	}
	if _, err := v.Generate(ctx, 1, "g", Burner); !errors.Is(err, ErrLocked) {
		t.Fatalf("want ErrLocked, got %v", err)
	}
	if _, err := v.Remove(ctx, []string{"x"}); !errors.Is(err, ErrLocked) {
		t.Fatalf("want ErrLocked, got %v", err)
	}
}

func TestGenerateRemove(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.jwe")

	v := NewFile(path)
	if err := v.Unlock("hunter2"); err != nil {
		t.Fatal(err)
	}

	ws, err := v.Generate(ctx, 3, "mygroup", Burner)
	if err != nil {
		t.Fatal(err)
	}
	if len(ws) != 3 {
		t.Fatalf("want 3 wallets, got %d", len(ws))
	}
	for i, w := range ws {
		want := "mygroup-W" + string(rune('0'+i))
		if w.Name != want {
			t.Fatalf("want name %q, got %q", want, w.Name)
		}
		if _, err := v.Signer(ctx, w.ID); err != nil {
			t.Fatal(err)
		}
	}

	// New wallets with the same prefix continue the index sequence.
	more, err := v.Generate(ctx, 1, "mygroup", Burner)
	if err != nil {
		t.Fatal(err)
	}
	if more[0].Name != "mygroup-W3" {
		t.Fatalf("want mygroup-W3, got %q", more[0].Name)
	}

	n, err := v.Remove(ctx, []string{ws[0].ID, ws[2].ID})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("want 2 removed, got %d", n)
	}

	left, err := v.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 2 {
		t.Fatalf("want 2 wallets left, got %d", len(left))
	}
}

func TestReopenWithPassword(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.jwe")

	v1 := NewFile(path)
	if err := v1.Unlock("correct horse"); err != nil {
		t.Fatal(err)
	}
	ws, err := v1.Generate(ctx, 1, "grp", Primary)
	if err != nil {
		t.Fatal(err)
	}

	v2 := NewFile(path)
	if err := v2.Unlock("wrong password"); err == nil {
		t.Fatalf("unlock with a wrong password must fail")
	}
	if err := v2.Unlock("correct horse"); err != nil {
		t.Fatal(err)
	}
	got, err := v2.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != ws[0].ID {
		t.Fatalf("reopened vault lost wallet data: %v", got)
	}
	if got[0].Address != ws[0].Address {
		t.Fatalf("want address %v, got %v", ws[0].Address, got[0].Address)
	}
}
