// Copyright (c) 2024 Nate Bag

package launchreg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/natebag/trenchtools/ctxutil"
	"github.com/natebag/trenchtools/syncmap"
)

// createMarker appears in the program logs of a token create instruction on
// the bonding-curve program.
const createMarker = "Program log: Instruction: Create"

// Monitor watches program logs mentioning managed wallets and marks a wallet
// in the registry when it creates a token mid-run. Subscriptions survive
// reconnects.
type Monitor struct {
	endpoint string

	reg *Registry

	// wallets maps base58 address to wallet id.
	wallets syncmap.Map[string, string]

	nextID atomic.Int64

	mu   sync.Mutex
	conn *websocket.Conn

	// reqAddrMap pairs an in-flight subscribe request id with its wallet
	// address; subIDMap pairs the server assigned subscription id with
	// the address. Both reset on reconnect.
	reqAddrMap map[int64]string
	subIDMap   map[int64]string

	cg ctxutil.CloseGroup
}

func NewMonitor(endpoint string, reg *Registry) *Monitor {
	return &Monitor{
		endpoint:   endpoint,
		reg:        reg,
		reqAddrMap: make(map[int64]string),
		subIDMap:   make(map[int64]string),
	}
}

func (m *Monitor) Start(ctx context.Context) {
	m.cg.Go(m.run)
}

func (m *Monitor) Close() {
	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.mu.Unlock()
	m.cg.Close()
}

// Watch adds a wallet to the watched set. Safe to call before Start and
// while the monitor is running.
func (m *Monitor) Watch(walletID, address string) {
	m.wallets.Store(address, walletID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		if err := m.subscribeLocked(address); err != nil {
			slog.Warn("could not subscribe to wallet logs (will retry on reconnect)", "wallet", walletID, "err", err)
		}
	}
}

func (m *Monitor) run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := m.watch(ctx); err != nil {
			if ctx.Err() == nil {
				slog.Warn("launch monitor connection failed (will retry)", "err", err)
			}
		}
		ctxutil.Sleep(ctx, time.Second)
	}
}

func (m *Monitor) watch(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, m.endpoint, nil)
	if err != nil {
		return fmt.Errorf("could not dial %q: %w", m.endpoint, err)
	}
	defer conn.Close()

	m.mu.Lock()
	m.conn = conn
	m.reqAddrMap = make(map[int64]string)
	m.subIDMap = make(map[int64]string)
	for _, addr := range m.wallets.Keys() {
		if err := m.subscribeLocked(addr); err != nil {
			m.conn = nil
			m.mu.Unlock()
			return err
		}
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := m.handleMessage(ctx, data); err != nil {
			slog.Warn("could not handle log message", "err", err)
		}
	}
}

type subscribeRequest struct {
	Version string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

func (m *Monitor) subscribeLocked(address string) error {
	id := m.nextID.Add(1)
	req := &subscribeRequest{
		Version: "2.0",
		ID:      id,
		Method:  "logsSubscribe",
		Params: []any{
			map[string]any{"mentions": []string{address}},
			map[string]any{"commitment": "confirmed"},
		},
	}
	if err := m.conn.WriteJSON(req); err != nil {
		return err
	}
	m.reqAddrMap[id] = address
	return nil
}

type logsMessage struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`

	Method string `json:"method"`
	Params *struct {
		Subscription int64 `json:"subscription"`
		Result       struct {
			Value struct {
				Signature string   `json:"signature"`
				Err       any      `json:"err"`
				Logs      []string `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

func (m *Monitor) handleMessage(ctx context.Context, data []byte) error {
	msg := new(logsMessage)
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("could not unmarshal log message: %w", err)
	}

	// Subscribe confirmations carry the request id and the assigned
	// subscription id.
	if msg.ID != 0 && len(msg.Result) > 0 {
		m.mu.Lock()
		defer m.mu.Unlock()
		addr, ok := m.reqAddrMap[msg.ID]
		if !ok {
			return nil
		}
		delete(m.reqAddrMap, msg.ID)
		var subID int64
		if err := json.Unmarshal(msg.Result, &subID); err != nil {
			return fmt.Errorf("could not unmarshal subscription id: %w", err)
		}
		m.subIDMap[subID] = addr
		return nil
	}

	if msg.Method != "logsNotification" || msg.Params == nil {
		return nil
	}
	value := &msg.Params.Result.Value
	if value.Err != nil || !hasCreateLog(value.Logs) {
		return nil
	}

	m.mu.Lock()
	addr, ok := m.subIDMap[msg.Params.Subscription]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	walletID, ok := m.wallets.Load(addr)
	if !ok {
		return nil
	}

	slog.Info("wallet launched a token", "wallet", walletID, "signature", value.Signature)
	return m.reg.Mark(ctx, walletID, addr, "")
}

func hasCreateLog(logs []string) bool {
	for _, line := range logs {
		if line == createMarker {
			return true
		}
	}
	return false
}
