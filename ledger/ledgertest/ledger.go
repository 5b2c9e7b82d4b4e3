// Package ledgertest provides a deterministic in-memory Ledger and Factory
// for exercising the pipeline without a live chain. Addresses are derived
// with the same CREATE/CREATE2 rules as the real network, so resume and
// compute-address behavior is faithful.
package ledgertest

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lendstate/lendstate-deployer-go/ledger"
)

// Handler executes a call payload against a registered contract and returns
// the ABI-encoded result.
type Handler func(payload []byte) ([]byte, error)

// CallRecord journals one state-changing call for assertions.
type CallRecord struct {
	To      common.Address
	Payload []byte
}

type contract struct {
	code    []byte
	handler Handler
}

// Ledger is an in-memory chain: a code store, per-address call handlers and
// a deploy nonce. It implements both ledger.Ledger and ledger.Factory.
type Ledger struct {
	mu        sync.Mutex
	deployer  common.Address
	nonce     uint64
	contracts map[common.Address]*contract
	failures  map[ledger.ArtifactID]error
	calls     []CallRecord
}

// New creates an empty in-memory ledger deploying from the given account.
func New(deployer common.Address) *Ledger {
	return &Ledger{
		deployer:  deployer,
		contracts: make(map[common.Address]*contract),
		failures:  make(map[ledger.ArtifactID]error),
	}
}

// Sender returns the deploying account.
func (l *Ledger) Sender() common.Address { return l.deployer }

// FailArtifact makes every subsequent Deploy of the artifact return err.
func (l *Ledger) FailArtifact(id ledger.ArtifactID, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[id] = err
}

// Install places a contract with the given handler at a caller-chosen
// address, bypassing deployment. Useful for pre-existing components such as
// price feeds.
func (l *Ledger) Install(addr common.Address, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.contracts[addr] = &contract{code: []byte{0x60, 0x80}, handler: h}
}

// Deploy implements ledger.Factory. The deployed code is a marker derived
// from the artifact id; Install a handler afterwards if the component must
// answer calls.
func (l *Ledger) Deploy(_ context.Context, artifact ledger.ArtifactID, args []byte) (common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failures[artifact]; err != nil {
		return common.Address{}, fmt.Errorf("deploy %s: %w", artifact, err)
	}
	addr := crypto.CreateAddress(l.deployer, l.nonce)
	l.nonce++
	l.contracts[addr] = &contract{code: crypto.Keccak256(append([]byte(artifact), args...))}
	return addr, nil
}

// ComputeAddress implements ledger.Factory with CREATE2 semantics.
func (l *Ledger) ComputeAddress(artifact ledger.ArtifactID, args []byte, salt [32]byte) (common.Address, error) {
	initHash := crypto.Keccak256(append([]byte(artifact), args...))
	return crypto.CreateAddress2(l.deployer, salt, initHash), nil
}

// GetCode implements ledger.Ledger.
func (l *Ledger) GetCode(_ context.Context, addr common.Address) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.contracts[addr]
	if !ok {
		return nil, nil
	}
	return c.code, nil
}

// Call implements the state-changing path of ledger.Ledger and journals the
// call.
func (l *Ledger) Call(_ context.Context, addr common.Address, payload []byte) ([]byte, error) {
	l.mu.Lock()
	c, ok := l.contracts[addr]
	l.calls = append(l.calls, CallRecord{To: addr, Payload: append([]byte(nil), payload...)})
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("call %s: no code at address", addr.Hex())
	}
	if c.handler == nil {
		// Components deployed without a handler accept any call.
		return nil, nil
	}
	return c.handler(payload)
}

// StaticCall implements the read-only path of ledger.Ledger.
func (l *Ledger) StaticCall(_ context.Context, addr common.Address, payload []byte) ([]byte, error) {
	l.mu.Lock()
	c, ok := l.contracts[addr]
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("static call %s: no code at address", addr.Hex())
	}
	if c.handler == nil {
		return nil, fmt.Errorf("static call %s: contract answers no queries", addr.Hex())
	}
	return c.handler(payload)
}

// Deploys returns the number of successful deployments.
func (l *Ledger) Deploys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(l.nonce)
}

// Calls returns the journal of state-changing calls.
func (l *Ledger) Calls() []CallRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]CallRecord(nil), l.calls...)
}

// CallsTo filters the journal by target address.
func (l *Ledger) CallsTo(addr common.Address) []CallRecord {
	var out []CallRecord
	for _, c := range l.Calls() {
		if c.To == addr {
			out = append(out, c)
		}
	}
	return out
}

// Dispatch builds a Handler that routes payloads by canonical signature,
// e.g. Dispatch(map[string]Handler{"getPool()": Return(...)}).
func Dispatch(routes map[string]Handler) Handler {
	bySelector := make(map[string]Handler, len(routes))
	for sig, h := range routes {
		bySelector[hex.EncodeToString(ledger.Selector(sig))] = h
	}
	return func(payload []byte) ([]byte, error) {
		if len(payload) < 4 {
			return nil, fmt.Errorf("dispatch: payload shorter than a selector")
		}
		h, ok := bySelector[hex.EncodeToString(payload[:4])]
		if !ok {
			return nil, fmt.Errorf("dispatch: no route for selector 0x%x", payload[:4])
		}
		return h(payload)
	}
}

// Return builds a Handler answering every call with a fixed value.
func Return(value []byte) Handler {
	return func([]byte) ([]byte, error) { return value, nil }
}

// Fail builds a Handler rejecting every call.
func Fail(err error) Handler {
	return func([]byte) ([]byte, error) { return nil, err }
}
