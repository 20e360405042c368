package common

import (
	"encoding/json"
	"fmt"

	ethereumCommon "github.com/ethereum/go-ethereum/common"
)

// Hash is a custom type based on Ethereum's common.Hash
type Hash ethereumCommon.Hash

// Address is a custom type based on Ethereum's common.Address
type Address ethereumCommon.Address

const (
	HashLength    = ethereumCommon.HashLength
	AddressLength = ethereumCommon.AddressLength
)

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte {
	return ethereumCommon.Hash(h).Bytes()
}

func (h Hash) String() string {
	return ethereumCommon.Hash(h).String()
}

func (h Hash) Hex() string {
	return ethereumCommon.Hash(h).Hex()
}

// Short renders the first and last two bytes, e.g. "3a4f..91c2".
func (h Hash) Short() string {
	s := h.Hex()
	return fmt.Sprintf("%s..%s", s[2:6], s[len(s)-4:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// BytesToHash converts a byte slice to a Hash. Longer inputs keep their
// trailing 32 bytes, shorter ones are left padded.
func BytesToHash(b []byte) Hash {
	return Hash(ethereumCommon.BytesToHash(b))
}

func HexToHash(s string) Hash {
	return Hash(ethereumCommon.HexToHash(s))
}

func Bytes2Hex(d []byte) string {
	return "0x" + ethereumCommon.Bytes2Hex(d)
}

func FromHex(b string) []byte {
	return ethereumCommon.FromHex(b)
}

// MarshalJSON custom marshaler to convert Hash to hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Hex())
}

// UnmarshalJSON custom unmarshaler to handle hex strings for Hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	*h = HexToHash(hexStr)
	return nil
}

// Address methods

func (a Address) Bytes() []byte {
	return ethereumCommon.Address(a).Bytes()
}

func (a Address) String() string {
	return ethereumCommon.Address(a).String()
}

func (a Address) Hex() string {
	return ethereumCommon.Address(a).Hex()
}

// Eth converts back to the go-ethereum type for use with its crypto helpers.
func (a Address) Eth() ethereumCommon.Address {
	return ethereumCommon.Address(a)
}

func HexToAddress(s string) Address {
	return Address(ethereumCommon.HexToAddress(s))
}

func BytesToAddress(b []byte) Address {
	return Address(ethereumCommon.BytesToAddress(b))
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Hex())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	*a = HexToAddress(hexStr)
	return nil
}
