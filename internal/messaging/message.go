package messaging

import (
	"github.com/compose-network/token-bridge/internal/felt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// MessageToL2 is an L1 -> L2 message as registered on the core contract
type MessageToL2 struct {
	FromAddress common.Address
	ToAddress   *uint256.Int
	Selector    *uint256.Int
	Payload     []*uint256.Int
	Nonce       uint64
}

// Hash is keccak256 over the packed 32-byte words
// from, to, nonce, selector, len(payload), payload...
func (m MessageToL2) Hash() common.Hash {
	words := make([]byte, 0, 32*(5+len(m.Payload)))
	words = append(words, common.LeftPadBytes(m.FromAddress.Bytes(), 32)...)
	words = appendWord(words, m.ToAddress)
	words = appendWord(words, uint256.NewInt(m.Nonce))
	words = appendWord(words, m.Selector)
	words = appendWord(words, uint256.NewInt(uint64(len(m.Payload))))
	for _, p := range m.Payload {
		words = appendWord(words, p)
	}
	return crypto.Keccak256Hash(words)
}

func (m MessageToL2) Clone() MessageToL2 {
	return MessageToL2{
		FromAddress: m.FromAddress,
		ToAddress:   new(uint256.Int).Set(m.ToAddress),
		Selector:    new(uint256.Int).Set(m.Selector),
		Payload:     felt.Clone(m.Payload),
		Nonce:       m.Nonce,
	}
}

// MessageToL1 is an L2 -> L1 message. It carries no nonce: identical messages
// are counted, not deduplicated.
type MessageToL1 struct {
	FromAddress *uint256.Int
	ToAddress   common.Address
	Payload     []*uint256.Int
}

// Hash is keccak256 over from, to, len(payload), payload...
func (m MessageToL1) Hash() common.Hash {
	words := make([]byte, 0, 32*(3+len(m.Payload)))
	words = appendWord(words, m.FromAddress)
	words = append(words, common.LeftPadBytes(m.ToAddress.Bytes(), 32)...)
	words = appendWord(words, uint256.NewInt(uint64(len(m.Payload))))
	for _, p := range m.Payload {
		words = appendWord(words, p)
	}
	return crypto.Keccak256Hash(words)
}

func (m MessageToL1) Clone() MessageToL1 {
	return MessageToL1{
		FromAddress: new(uint256.Int).Set(m.FromAddress),
		ToAddress:   m.ToAddress,
		Payload:     felt.Clone(m.Payload),
	}
}

func appendWord(dst []byte, v *uint256.Int) []byte {
	b := v.Bytes32()
	return append(dst, b[:]...)
}
