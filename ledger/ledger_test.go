// Copyright (c) 2024 Nate Bag

package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/bvkgo/kv/kvmemdb"
	"github.com/shopspring/decimal"

	"github.com/natebag/trenchtools/gobs"
)

func newRecord(uid, groupID string, at time.Time) *gobs.TradeRecord {
	return &gobs.TradeRecord{
		UID:       uid,
		GroupID:   groupID,
		Side:      "BUY",
		SolAmount: decimal.NewFromFloat(0.1),
		Time:      at,
	}
}

func TestAppendScan(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	l := New(db)
	defer l.Close()

	now := time.Now()
	for i := 0; i < 5; i++ {
		group := "g1"
		if i%2 == 1 {
			group = "g2"
		}
		rec := newRecord(fmt.Sprintf("uid-%d", i), group, now.Add(time.Duration(i)*time.Second))
		if err := l.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	var all []string
	scan := func(rec *gobs.TradeRecord) error {
		all = append(all, rec.UID)
		return nil
	}
	if err := l.Scan(ctx, scan); err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("scan returned %d records, want 5", len(all))
	}
	for i, uid := range all {
		if want := fmt.Sprintf("uid-%d", i); uid != want {
			t.Fatalf("record %d is %s, want %s (records are out of time order)", i, uid, want)
		}
	}

	var g1 int
	if err := l.ScanGroup(ctx, "g1", func(rec *gobs.TradeRecord) error {
		g1++
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if g1 != 3 {
		t.Fatalf("group scan returned %d records, want 3", g1)
	}
}

func TestAppendDuplicate(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	l := New(db)
	defer l.Close()

	rec := newRecord("uid-0", "g1", time.Now())
	if err := l.Append(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(ctx, rec); !errors.Is(err, os.ErrExist) {
		t.Fatalf("duplicate append returned %v, want %v", err, os.ErrExist)
	}
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	l := New(db)
	defer l.Close()

	r, ch, err := l.Subscribe(1)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if err := l.Append(ctx, newRecord("uid-0", "g1", time.Now())); err != nil {
		t.Fatal(err)
	}
	select {
	case rec := <-ch:
		if rec.UID != "uid-0" {
			t.Fatalf("received %s, want uid-0", rec.UID)
		}
	case <-time.After(time.Second):
		t.Fatalf("no record published within a second")
	}
}
