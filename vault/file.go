// Copyright (c) 2024 Nate Bag

package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	jose "gopkg.in/square/go-jose.v2"
)

// File is a vault backed by a single JWE-encrypted file. The file holds all
// keypairs encrypted with a password-derived key; the vault starts locked
// and must be unlocked before any operation that touches key material.
type File struct {
	path string

	mu sync.Mutex

	password []byte

	wallets []*fileWallet
}

type fileWallet struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Secret  string `json:"secret"` // base58 private key
	address solana.PublicKey
}

type fileData struct {
	Wallets []*fileWallet `json:"wallets"`
}

// NewFile opens (or prepares to create) a vault file at the given path. The
// returned vault is locked.
func NewFile(path string) *File {
	return &File{path: path}
}

var _ Vault = (*File)(nil)

// Unlock decrypts the vault file with the given password. Unlocking a vault
// whose file does not exist yet initializes an empty vault; the file is
// created on the first mutation.
func (f *File) Unlock(password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("could not read vault file %q: %w", f.path, err)
		}
		f.password = []byte(password)
		f.wallets = nil
		return nil
	}

	obj, err := jose.ParseEncrypted(string(data))
	if err != nil {
		return fmt.Errorf("could not parse vault file %q: %w", f.path, err)
	}
	plain, err := obj.Decrypt([]byte(password))
	if err != nil {
		return fmt.Errorf("could not decrypt vault (wrong password?): %w", err)
	}

	var fd fileData
	if err := json.Unmarshal(plain, &fd); err != nil {
		return fmt.Errorf("could not decode vault contents: %w", err)
	}
	for _, w := range fd.Wallets {
		key, err := solana.PrivateKeyFromBase58(w.Secret)
		if err != nil {
			return fmt.Errorf("could not decode key for wallet %q: %w", w.ID, err)
		}
		w.address = key.PublicKey()
	}

	f.password = []byte(password)
	f.wallets = fd.Wallets
	return nil
}

// Lock drops the in-memory password and key material.
func (f *File) Lock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.password = nil
	f.wallets = nil
}

func (f *File) Locked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.password == nil
}

func (f *File) saveLocked() error {
	plain, err := json.Marshal(&fileData{Wallets: f.wallets})
	if err != nil {
		return err
	}

	enc, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{
		Algorithm: jose.PBES2_HS256_A128KW,
		Key:       f.password,
	}, nil)
	if err != nil {
		return fmt.Errorf("could not create vault encrypter: %w", err)
	}
	obj, err := enc.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("could not encrypt vault contents: %w", err)
	}
	serialized, err := obj.CompactSerialize()
	if err != nil {
		return fmt.Errorf("could not serialize vault contents: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(serialized), 0600); err != nil {
		return fmt.Errorf("could not write vault file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("could not replace vault file: %w", err)
	}
	return nil
}

func (f *File) List(ctx context.Context) ([]*Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.password == nil {
		return nil, ErrLocked
	}

	var ws []*Wallet
	for _, w := range f.wallets {
		ws = append(ws, &Wallet{
			ID:      w.ID,
			Name:    w.Name,
			Kind:    w.Kind,
			Address: w.address,
		})
	}
	return ws, nil
}

func (f *File) Generate(ctx context.Context, count int, namePrefix string, kind Kind) ([]*Wallet, error) {
	if count <= 0 {
		return nil, fmt.Errorf("wallet count must be positive")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.password == nil {
		return nil, ErrLocked
	}

	// Continue the index sequence after existing wallets with this prefix,
	// so resumed groups never reuse a wallet name.
	next := 0
	for _, w := range f.wallets {
		var idx int
		if n, _ := fmt.Sscanf(w.Name, namePrefix+"-W%d", &idx); n == 1 && idx >= next {
			next = idx + 1
		}
	}

	var out []*Wallet
	for i := 0; i < count; i++ {
		acct := solana.NewWallet()
		fw := &fileWallet{
			ID:      uuid.New().String(),
			Name:    fmt.Sprintf("%s-W%d", namePrefix, next+i),
			Kind:    kind,
			Secret:  acct.PrivateKey.String(),
			address: acct.PublicKey(),
		}
		f.wallets = append(f.wallets, fw)
		out = append(out, &Wallet{
			ID:      fw.ID,
			Name:    fw.Name,
			Kind:    fw.Kind,
			Address: fw.address,
		})
	}

	if err := f.saveLocked(); err != nil {
		// Roll back the in-memory additions; they were never persisted.
		f.wallets = f.wallets[:len(f.wallets)-count]
		return nil, err
	}
	return out, nil
}

func (f *File) Remove(ctx context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.password == nil {
		return 0, ErrLocked
	}

	idSet := make(map[string]bool)
	for _, id := range ids {
		idSet[id] = true
	}

	var kept []*fileWallet
	removed := 0
	for _, w := range f.wallets {
		if idSet[w.ID] {
			removed++
			continue
		}
		kept = append(kept, w)
	}
	if removed == 0 {
		return 0, nil
	}

	old := f.wallets
	f.wallets = kept
	if err := f.saveLocked(); err != nil {
		f.wallets = old
		return 0, err
	}
	return removed, nil
}

func (f *File) Signer(ctx context.Context, id string) (solana.PrivateKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.password == nil {
		return nil, ErrLocked
	}
	for _, w := range f.wallets {
		if w.ID == id {
			return solana.PrivateKeyFromBase58(w.Secret)
		}
	}
	return nil, fmt.Errorf("wallet %q not found: %w", id, os.ErrNotExist)
}
