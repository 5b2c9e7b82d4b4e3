// Package acl exposes the market's role-membership contract through a small
// closed set of roles with grant, revoke, renounce and has operations. Role
// identifiers stay an implementation detail: callers deal in the enum, the
// wire encoding derives the 32-byte tag.
package acl

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lendstate/lendstate-deployer-go/ledger"
)

// Role is one named capability of the market.
type Role uint8

const (
	RolePoolAdmin Role = iota
	RoleEmergencyAdmin
	RoleRiskAdmin
	RoleAssetListingAdmin
	RoleFlashBorrower
)

var roleNames = map[Role]string{
	RolePoolAdmin:         "POOL_ADMIN",
	RoleEmergencyAdmin:    "EMERGENCY_ADMIN",
	RoleRiskAdmin:         "RISK_ADMIN",
	RoleAssetListingAdmin: "ASSET_LISTING_ADMIN",
	RoleFlashBorrower:     "FLASH_BORROWER",
}

// String returns the role's on-chain name.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("ROLE(%d)", uint8(r))
}

// Tag returns the 32-byte identifier the contract keys memberships by.
func (r Role) Tag() [32]byte {
	var tag [32]byte
	copy(tag[:], crypto.Keccak256([]byte(r.String())))
	return tag
}

// Roles enumerates the closed role set.
func Roles() []Role {
	return []Role{RolePoolAdmin, RoleEmergencyAdmin, RoleRiskAdmin, RoleAssetListingAdmin, RoleFlashBorrower}
}

// Manager drives one ACL manager contract.
type Manager struct {
	ledger  ledger.Ledger
	address common.Address
}

// NewManager wraps the ACL manager at the given address.
func NewManager(l ledger.Ledger, address common.Address) *Manager {
	return &Manager{ledger: l, address: address}
}

// Address returns the managed contract's address.
func (m *Manager) Address() common.Address { return m.address }

// Has reports whether the account holds the role.
func (m *Manager) Has(ctx context.Context, role Role, account common.Address) (bool, error) {
	payload, err := ledger.Pack("hasRole(bytes32,address)", role.Tag(), account)
	if err != nil {
		return false, err
	}
	out, err := m.ledger.StaticCall(ctx, m.address, payload)
	if err != nil {
		return false, fmt.Errorf("acl: query %s for %s: %w", role, account.Hex(), err)
	}
	return ledger.UnpackBool(out)
}

// Grant adds the account to the role.
func (m *Manager) Grant(ctx context.Context, role Role, account common.Address) error {
	payload, err := ledger.Pack("grantRole(bytes32,address)", role.Tag(), account)
	if err != nil {
		return err
	}
	if _, err := m.ledger.Call(ctx, m.address, payload); err != nil {
		return fmt.Errorf("acl: grant %s to %s: %w", role, account.Hex(), err)
	}
	return nil
}

// Revoke removes the account from the role.
func (m *Manager) Revoke(ctx context.Context, role Role, account common.Address) error {
	payload, err := ledger.Pack("revokeRole(bytes32,address)", role.Tag(), account)
	if err != nil {
		return err
	}
	if _, err := m.ledger.Call(ctx, m.address, payload); err != nil {
		return fmt.Errorf("acl: revoke %s from %s: %w", role, account.Hex(), err)
	}
	return nil
}

// Renounce drops the caller's own membership. This is the one-way step the
// listing payload ends with.
func (m *Manager) Renounce(ctx context.Context, role Role, self common.Address) error {
	payload, err := ledger.Pack("renounceRole(bytes32,address)", role.Tag(), self)
	if err != nil {
		return err
	}
	if _, err := m.ledger.Call(ctx, m.address, payload); err != nil {
		return fmt.Errorf("acl: renounce %s: %w", role, err)
	}
	return nil
}
