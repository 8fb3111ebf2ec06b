package felt

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	// FieldPrime is the prime of the L2 field: 2^251 + 17*2^192 + 1.
	FieldPrime = mustDecimal("3618502788666131213697322783095070105623107215331596699973092056135872020481")

	// EthAddressBound is 2^160, the exclusive upper bound of an L1 address encoded as a felt.
	EthAddressBound = new(uint256.Int).Lsh(uint256.NewInt(1), 160)

	// limbBound is 2^128, the exclusive upper bound of a Uint256 limb.
	limbBound = new(uint256.Int).Lsh(uint256.NewInt(1), 128)

	selectorMask = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 250), uint256.NewInt(1))

	ErrLimbOutOfRange   = errors.New("felt: uint256 limb out of range")
	ErrShortStringRange = errors.New("felt: short string does not fit in a field element")
)

func mustDecimal(s string) *uint256.Int {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsValidL2Address reports whether x can address an account on L2 (0 < x < FieldPrime).
func IsValidL2Address(x *uint256.Int) bool {
	return x != nil && !x.IsZero() && x.Lt(FieldPrime)
}

// IsValidL1Address reports whether x fits in an L1 address.
func IsValidL1Address(x *uint256.Int) bool {
	return x != nil && x.Lt(EthAddressBound)
}

// SplitUint256 returns the low and high 128-bit limbs of a.
func SplitUint256(a *uint256.Int) (low, high *uint256.Int) {
	low = new(uint256.Int).And(a, new(uint256.Int).Sub(limbBound, uint256.NewInt(1)))
	high = new(uint256.Int).Rsh(a, 128)
	return low, high
}

// JoinUint256 rebuilds a 256-bit value from its limbs.
func JoinUint256(low, high *uint256.Int) (*uint256.Int, error) {
	if !low.Lt(limbBound) || !high.Lt(limbBound) {
		return nil, fmt.Errorf("%w: low=%s high=%s", ErrLimbOutOfRange, low.Dec(), high.Dec())
	}
	v := new(uint256.Int).Lsh(high, 128)
	return v.Or(v, low), nil
}

// Selector computes the L2 entry point selector of name (keccak256 truncated to 250 bits).
func Selector(name string) *uint256.Int {
	return Keccak250([]byte(name))
}

// Keccak250 hashes data and truncates the digest to 250 bits so it is a valid felt.
func Keccak250(data ...[]byte) *uint256.Int {
	h := new(uint256.Int).SetBytes(crypto.Keccak256(data...))
	return h.And(h, selectorMask)
}

// StrToFelt encodes an ASCII short string as a field element.
func StrToFelt(s string) (*uint256.Int, error) {
	if len(s) > 31 {
		return nil, fmt.Errorf("%w: %q", ErrShortStringRange, s)
	}
	v := new(uint256.Int).SetBytes([]byte(s))
	if !v.Lt(FieldPrime) {
		return nil, fmt.Errorf("%w: %q", ErrShortStringRange, s)
	}
	return v, nil
}

// MustStrToFelt is StrToFelt for constants.
func MustStrToFelt(s string) *uint256.Int {
	v, err := StrToFelt(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FeltToStr decodes a short string field element.
func FeltToStr(v *uint256.Int) string {
	b := v.Bytes()
	return string(b)
}

// AddressToFelt encodes an L1 address as a field element.
func AddressToFelt(addr common.Address) *uint256.Int {
	return new(uint256.Int).SetBytes(addr.Bytes())
}

// FeltToAddress decodes an L1 address from a field element. The caller checks the bound first.
func FeltToAddress(v *uint256.Int) common.Address {
	b := v.Bytes32()
	return common.BytesToAddress(b[12:])
}

// FromUint64s is a convenience for building payloads in tests and tools.
func FromUint64s(vs ...uint64) []*uint256.Int {
	out := make([]*uint256.Int, len(vs))
	for i, v := range vs {
		out[i] = uint256.NewInt(v)
	}
	return out
}

// Clone deep-copies a payload.
func Clone(vs []*uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(vs))
	for i, v := range vs {
		out[i] = new(uint256.Int).Set(v)
	}
	return out
}

// Equal compares two payloads element-wise.
func Equal(a, b []*uint256.Int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Eq(b[i]) {
			return false
		}
	}
	return true
}
