package types

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

// VerifierMode selects the proof acceptance policy of the pool.
type VerifierMode uint8

const (
	// VerifierModeDisabled accepts any non-empty proof. Placeholder policy,
	// not a security control.
	VerifierModeDisabled VerifierMode = iota
	// VerifierModeStubMagic accepts a proof equal to the configured magic.
	VerifierModeStubMagic
	// VerifierModeDelegated forwards the proof to an external verifier.
	VerifierModeDelegated
	// VerifierModeStructuralPlonk runs format-level Plonk proof checks.
	VerifierModeStructuralPlonk
)

// Valid reports whether m is a known verifier mode.
func (m VerifierMode) Valid() bool {
	return m <= VerifierModeStructuralPlonk
}

func (m VerifierMode) String() string {
	switch m {
	case VerifierModeDisabled:
		return "disabled"
	case VerifierModeStubMagic:
		return "stub-magic"
	case VerifierModeDelegated:
		return "delegated"
	case VerifierModeStructuralPlonk:
		return "structural-plonk"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// PoolConfig is the authority-owned policy of the pool. Values handed out by
// the access control layer are immutable snapshots: mutate a Clone.
type PoolConfig struct {
	Authority     common.Address   `json:"authority" cbor:"0,keyasint"`
	Custody       common.Address   `json:"custody" cbor:"1,keyasint"`
	DenyList      []common.Address `json:"denyList" cbor:"2,keyasint"`
	VerifierMode  VerifierMode     `json:"verifierMode" cbor:"3,keyasint"`
	VerifierMagic HexBytes         `json:"verifierMagic" cbor:"4,keyasint"`
	Paused        bool             `json:"paused" cbor:"5,keyasint"`
}

// Clone returns a deep copy of the configuration.
func (c *PoolConfig) Clone() *PoolConfig {
	out := *c
	out.DenyList = slices.Clone(c.DenyList)
	out.VerifierMagic = slices.Clone(c.VerifierMagic)
	return &out
}

// IsDenied reports whether addr is in the deny-list. The list is kept sorted.
func (c *PoolConfig) IsDenied(addr common.Address) bool {
	_, found := slices.BinarySearchFunc(c.DenyList, addr, compareAddress)
	return found
}

// Deny inserts addr into the deny-list. It reports whether the list changed.
func (c *PoolConfig) Deny(addr common.Address) bool {
	i, found := slices.BinarySearchFunc(c.DenyList, addr, compareAddress)
	if found {
		return false
	}
	c.DenyList = slices.Insert(c.DenyList, i, addr)
	return true
}

// Allow removes addr from the deny-list. It reports whether the list changed.
func (c *PoolConfig) Allow(addr common.Address) bool {
	i, found := slices.BinarySearchFunc(c.DenyList, addr, compareAddress)
	if !found {
		return false
	}
	c.DenyList = slices.Delete(c.DenyList, i, i+1)
	return true
}

func compareAddress(a, b common.Address) int {
	return bytes.Compare(a[:], b[:])
}

// PoolState holds the current commitment-tree root.
type PoolState struct {
	Root common.Hash `json:"root" cbor:"0,keyasint"`
}
