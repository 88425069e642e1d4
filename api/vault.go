// Copyright (c) 2024 Nate Bag

package api

const VaultUnlockPath = "/trench/vault/unlock"

type VaultUnlockRequest struct {
	Password string
}

type VaultUnlockResponse struct {
	NumWallets int
}

const VaultLockPath = "/trench/vault/lock"

type VaultLockRequest struct {
}

type VaultLockResponse struct {
}

const VaultListPath = "/trench/vault/list"

type VaultListRequest struct {
}

type VaultListResponseItem struct {
	ID   string
	Name string
	Kind string

	Address string

	// Launched is true for wallets recorded in the launch registry.
	Launched bool
}

type VaultListResponse struct {
	Wallets []*VaultListResponseItem
}

const VaultGeneratePath = "/trench/vault/generate"

type VaultGenerateRequest struct {
	Count int

	NamePrefix string

	// Kind is "PRIMARY" or "BURNER".
	Kind string
}

type VaultGenerateResponse struct {
	Wallets []*VaultListResponseItem
}
