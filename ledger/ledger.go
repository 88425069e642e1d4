// Copyright (c) 2024 Nate Bag

// Package ledger persists the append-only record of executed swaps and
// publishes each new record to in-process subscribers.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bvkgo/kv"
	"github.com/visvasity/topic"

	"github.com/natebag/trenchtools/gobs"
	"github.com/natebag/trenchtools/kvutil"
)

const Keyspace = "/trades/"

type Ledger struct {
	db kv.Database

	topic *topic.Topic[*gobs.TradeRecord]
}

func New(db kv.Database) *Ledger {
	return &Ledger{
		db:    db,
		topic: topic.New[*gobs.TradeRecord](),
	}
}

func (l *Ledger) Close() {
	l.topic.Close()
}

func recordKey(rec *gobs.TradeRecord) string {
	// Records sort by time under an Ascend; the uid suffix keeps keys
	// unique within a nanosecond.
	return fmt.Sprintf("%s%020d-%s", Keyspace, rec.Time.UnixNano(), rec.UID)
}

// Append writes a new record. Records are immutable, so an existing key is
// an error.
func (l *Ledger) Append(ctx context.Context, rec *gobs.TradeRecord) error {
	if rec.UID == "" {
		return fmt.Errorf("trade record has no uid: %w", os.ErrInvalid)
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	key := recordKey(rec)
	save := func(ctx context.Context, rw kv.ReadWriter) error {
		if _, err := kvutil.Get[gobs.TradeRecord](ctx, rw, key); err == nil {
			return fmt.Errorf("trade record %s: %w", rec.UID, os.ErrExist)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return kvutil.Set(ctx, rw, key, rec)
	}
	if err := kv.WithReadWriter(ctx, l.db, save); err != nil {
		return err
	}
	return l.topic.Send(rec)
}

// Subscribe returns a channel of records appended after the call. The
// receiver must be closed when done.
func (l *Ledger) Subscribe(limit int) (*topic.Receiver[*gobs.TradeRecord], <-chan *gobs.TradeRecord, error) {
	r, err := topic.Subscribe(l.topic, limit, false /* includeLast */)
	if err != nil {
		return nil, nil, err
	}
	ch, err := topic.ReceiveCh(r)
	if err != nil {
		r.Close()
		return nil, nil, err
	}
	return r, ch, nil
}

// Scan visits every record in time order.
func (l *Ledger) Scan(ctx context.Context, fn func(*gobs.TradeRecord) error) error {
	begin, end := kvutil.PathRange(Keyspace)
	return kvutil.AscendDB(ctx, l.db, begin, end, func(ctx context.Context, r kv.Reader, k string, rec *gobs.TradeRecord) error {
		return fn(rec)
	})
}

// ScanGroup visits records belonging to one trade group, in time order.
func (l *Ledger) ScanGroup(ctx context.Context, groupID string, fn func(*gobs.TradeRecord) error) error {
	return l.Scan(ctx, func(rec *gobs.TradeRecord) error {
		if rec.GroupID != groupID {
			return nil
		}
		return fn(rec)
	})
}
