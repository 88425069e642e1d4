// Copyright (c) 2024 Nate Bag

package server

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/natebag/trenchtools/telegram"
)

type SolanaEndpoints struct {
	// RPCEndpoint is the http JSON-RPC url of a Solana node.
	RPCEndpoint string `json:"rpc"`

	// WebsocketEndpoint is the ws url used for log subscriptions.
	WebsocketEndpoint string `json:"websocket"`
}

func (v *SolanaEndpoints) Check() error {
	if len(v.RPCEndpoint) == 0 {
		return fmt.Errorf("solana rpc endpoint cannot be empty")
	}
	return nil
}

type Secrets struct {
	Solana *SolanaEndpoints `json:"solana"`

	Telegram *telegram.Secrets `json:"telegram"`
}

func SecretsFromFile(fpath string) (*Secrets, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}
	s := new(Secrets)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (v *Secrets) Check() error {
	if v.Solana == nil {
		return fmt.Errorf("solana endpoints are required")
	}
	if err := v.Solana.Check(); err != nil {
		return err
	}
	if v.Telegram != nil {
		if err := v.Telegram.Check(); err != nil {
			return err
		}
	}
	return nil
}
