// Copyright (c) 2024 Nate Bag

// Package namer maintains a bidirectional name<->uid mapping for named
// objects (bot groups) in the database.
package namer

import (
	"context"
	"crypto/md5"
	"fmt"
	"path"

	"github.com/bvkgo/kv"
	"github.com/google/uuid"

	"github.com/natebag/trenchtools/gobs"
	"github.com/natebag/trenchtools/kvutil"
)

var Keyspace = "/names/"

func toUUID(str string) string {
	return uuid.UUID(md5.Sum([]byte(str))).String()
}

func checkEqual(a, b *gobs.NameData) error {
	if a.Name != b.Name {
		return fmt.Errorf("Name field value is not the same")
	}
	if a.ID != b.ID {
		return fmt.Errorf("ID field value is not the same")
	}
	if a.Typename != b.Typename {
		return fmt.Errorf("Typename field value is not the same")
	}
	return nil
}

// ResolveDB is similar to Resolve, but takes a kv.Database argument.
func ResolveDB(ctx context.Context, db kv.Database, str string) (name, id, typename string, err error) {
	resolve := func(ctx context.Context, r kv.Reader) error {
		name, id, typename, err = Resolve(ctx, r, str)
		return nil
	}
	kv.WithReader(ctx, db, resolve)
	return name, id, typename, err
}

// Resolve converts a string argument, which can be a name or an id, using
// the namer database.
func Resolve(ctx context.Context, r kv.Reader, str string) (name, id, typename string, err error) {
	if len(str) == 0 {
		return "", "", "", fmt.Errorf("name/id string argument cannot be empty")
	}
	skey := path.Join(Keyspace, toUUID(str))
	data, err := kvutil.Get[gobs.NameData](ctx, r, skey)
	if err != nil {
		return "", "", "", fmt.Errorf("could not fetch naming data: %w", err)
	}
	// Check that the other link also points to the same data.
	other := ""
	if data.Name == str {
		other = data.ID
	} else if data.ID == str {
		other = data.Name
	} else {
		return "", "", "", fmt.Errorf("unexpected: name data is inconsistent for %q", str)
	}
	okey := path.Join(Keyspace, toUUID(other))
	if v, err := kvutil.Get[gobs.NameData](ctx, r, okey); err != nil {
		return "", "", "", fmt.Errorf("could not read name data for tag %q: %w", other, err)
	} else if err := checkEqual(data, v); err != nil {
		return "", "", "", fmt.Errorf("unexpected: name data at ID and Name is not the same: %w", err)
	}
	return data.Name, data.ID, data.Typename, nil
}

func SetName(ctx context.Context, rw kv.ReadWriter, name, id, typename string) error {
	if len(id) == 0 || len(name) == 0 {
		return fmt.Errorf("id and name must be non-empty")
	}
	data := &gobs.NameData{
		ID:       id,
		Name:     name,
		Typename: typename,
	}
	nkey := path.Join(Keyspace, toUUID(name))
	if err := kvutil.Set(ctx, rw, nkey, data); err != nil {
		return fmt.Errorf("could not set name key: %w", err)
	}
	ikey := path.Join(Keyspace, toUUID(id))
	if err := kvutil.Set(ctx, rw, ikey, data); err != nil {
		return fmt.Errorf("could not set id key: %w", err)
	}
	return nil
}

// Delete removes both links of a name<->id mapping.
func Delete(ctx context.Context, rw kv.ReadWriter, name, id string) error {
	nkey := path.Join(Keyspace, toUUID(name))
	if err := rw.Delete(ctx, nkey); err != nil {
		return fmt.Errorf("could not delete name key: %w", err)
	}
	ikey := path.Join(Keyspace, toUUID(id))
	if err := rw.Delete(ctx, ikey); err != nil {
		return fmt.Errorf("could not delete id key: %w", err)
	}
	return nil
}
