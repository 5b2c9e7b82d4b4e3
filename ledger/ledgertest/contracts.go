package ledgertest

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lendstate/lendstate-deployer-go/ledger"
)

// ACLState emulates a role-membership contract: grantRole, revokeRole,
// renounceRole and hasRole over (role tag, account) pairs. renounce removes
// the ledger's sender, matching the self-revocation path of the listing
// payload.
type ACLState struct {
	mu      sync.Mutex
	sender  common.Address
	members map[string]bool
}

// NewACLState creates an empty role store; sender is the account every call
// is attributed to.
func NewACLState(sender common.Address) *ACLState {
	return &ACLState{sender: sender, members: make(map[string]bool)}
}

func roleKey(role [32]byte, account common.Address) string {
	return string(role[:]) + string(account.Bytes())
}

// HasRole reports membership directly, for test assertions.
func (a *ACLState) HasRole(role [32]byte, account common.Address) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.members[roleKey(role, account)]
}

// Grant adds a membership directly, for test setup.
func (a *ACLState) Grant(role [32]byte, account common.Address) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.members[roleKey(role, account)] = true
}

// Handler answers the ACL manager's call surface.
func (a *ACLState) Handler() Handler {
	return Dispatch(map[string]Handler{
		"grantRole(bytes32,address)": func(payload []byte) ([]byte, error) {
			role, account, err := unpackRoleAccount(payload)
			if err != nil {
				return nil, err
			}
			a.mu.Lock()
			a.members[roleKey(role, account)] = true
			a.mu.Unlock()
			return nil, nil
		},
		"revokeRole(bytes32,address)": func(payload []byte) ([]byte, error) {
			role, account, err := unpackRoleAccount(payload)
			if err != nil {
				return nil, err
			}
			a.mu.Lock()
			delete(a.members, roleKey(role, account))
			a.mu.Unlock()
			return nil, nil
		},
		"renounceRole(bytes32,address)": func(payload []byte) ([]byte, error) {
			role, account, err := unpackRoleAccount(payload)
			if err != nil {
				return nil, err
			}
			if account != a.sender {
				return nil, fmt.Errorf("renounce: can only renounce roles for self")
			}
			a.mu.Lock()
			delete(a.members, roleKey(role, account))
			a.mu.Unlock()
			return nil, nil
		},
		"hasRole(bytes32,address)": func(payload []byte) ([]byte, error) {
			role, account, err := unpackRoleAccount(payload)
			if err != nil {
				return nil, err
			}
			a.mu.Lock()
			has := a.members[roleKey(role, account)]
			a.mu.Unlock()
			return ledger.EncodeBool(has), nil
		},
	})
}

func unpackRoleAccount(payload []byte) ([32]byte, common.Address, error) {
	if len(payload) != 4+32+32 {
		return [32]byte{}, common.Address{}, fmt.Errorf("role call: want 68 bytes, got %d", len(payload))
	}
	var role [32]byte
	copy(role[:], payload[4:36])
	return role, common.BytesToAddress(payload[36:68]), nil
}

// Ownable emulates a contract with owner()/transferOwnership(address).
type Ownable struct {
	mu    sync.Mutex
	owner common.Address
}

// NewOwnable creates an ownable contract state with the given initial owner.
func NewOwnable(owner common.Address) *Ownable {
	return &Ownable{owner: owner}
}

// Owner returns the current owner, for test assertions.
func (o *Ownable) Owner() common.Address {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.owner
}

// Handler answers owner() and transferOwnership(address).
func (o *Ownable) Handler() Handler {
	return Dispatch(map[string]Handler{
		"owner()": func([]byte) ([]byte, error) {
			o.mu.Lock()
			defer o.mu.Unlock()
			return ledger.EncodeAddress(o.owner), nil
		},
		"transferOwnership(address)": func(payload []byte) ([]byte, error) {
			if len(payload) != 4+32 {
				return nil, fmt.Errorf("transferOwnership: want 36 bytes, got %d", len(payload))
			}
			o.mu.Lock()
			o.owner = common.BytesToAddress(payload[4:36])
			o.mu.Unlock()
			return nil, nil
		},
	})
}

// Feed emulates a price aggregator answering latestAnswer() with a settable
// signed value.
type Feed struct {
	mu     sync.Mutex
	answer *big.Int
}

// NewFeed creates a feed with an initial answer.
func NewFeed(answer *big.Int) *Feed {
	return &Feed{answer: new(big.Int).Set(answer)}
}

// Set replaces the feed's answer.
func (f *Feed) Set(answer *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answer = new(big.Int).Set(answer)
}

// Handler answers latestAnswer().
func (f *Feed) Handler() Handler {
	return Dispatch(map[string]Handler{
		"latestAnswer()": func([]byte) ([]byte, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			return ledger.EncodeBigInt(f.answer), nil
		},
	})
}
