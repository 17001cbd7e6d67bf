package tipping

import (
	"bytes"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ComputeLeaf derives the membership leaf for an account and its lifetime
// bound. The bound is encoded as a 32-byte big-endian word so leaves match
// what the off-chain commitment tooling produces.
func ComputeLeaf(account [20]byte, lifetimeBound *big.Int) [32]byte {
	var leaf [32]byte
	if lifetimeBound == nil || lifetimeBound.Sign() < 0 {
		return leaf
	}
	var word [32]byte
	lifetimeBound.FillBytes(word[:])
	copy(leaf[:], ethcrypto.Keccak256(account[:], word[:]))
	return leaf
}

// VerifyMembership folds the ordered sibling digests over the claimed leaf
// using sorted-pair hashing and compares the result against the commitment
// root. It is pure and fails closed: malformed input is simply not a member.
func VerifyMembership(leaf [32]byte, proof [][32]byte, root [32]byte) bool {
	if isZeroHash(root) {
		return false
	}
	computed := leaf
	for _, sibling := range proof {
		if bytes.Compare(computed[:], sibling[:]) <= 0 {
			copy(computed[:], ethcrypto.Keccak256(computed[:], sibling[:]))
		} else {
			copy(computed[:], ethcrypto.Keccak256(sibling[:], computed[:]))
		}
	}
	return computed == root
}
