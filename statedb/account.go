package statedb

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/colorfulnotion/rwtrace/common"
	"github.com/colorfulnotion/rwtrace/rwerrors"
)

// Account field layout in the persistent store.
const (
	AccountFieldsCount = 6

	AccountBalanceField        = 0
	AccountNonceField          = 1
	AccountSourceCodeSizeField = 2
	AccountSourceCodeHashField = 3
	AccountRwasmCodeSizeField  = 4
	AccountRwasmCodeHashField  = 5
)

// AccountCompressionFlags marks the fields stored hashed: the balance, which
// may use all 256 bits, and the keccak source code hash.
const AccountCompressionFlags uint32 = 1<<AccountBalanceField + 1<<AccountSourceCodeHashField

// AccountFields is the packed form of an account.
type AccountFields [AccountFieldsCount][32]byte

var (
	// EmptySourceCodeHash is keccak256 of empty code.
	EmptySourceCodeHash = common.Keccak256(nil)
	// EmptyRwasmCodeHash is blake2b-256 of empty code.
	EmptyRwasmCodeHash = common.Blake2Hash(nil)
)

type Account struct {
	Address        common.Address `json:"address"`
	Balance        uint256.Int    `json:"balance"`
	Nonce          uint64         `json:"nonce"`
	SourceCodeSize uint64         `json:"source_code_size"`
	SourceCodeHash common.Hash    `json:"source_code_hash"`
	RwasmCodeSize  uint64         `json:"rwasm_code_size"`
	RwasmCodeHash  common.Hash    `json:"rwasm_code_hash"`
}

// NewAccount returns the empty account at address.
func NewAccount(address common.Address) *Account {
	return &Account{
		Address:        address,
		SourceCodeHash: EmptySourceCodeHash,
		RwasmCodeHash:  EmptyRwasmCodeHash,
	}
}

// Fields packs the account; integers are little endian.
func (a *Account) Fields() AccountFields {
	var f AccountFields
	for i, limb := range a.Balance {
		binary.LittleEndian.PutUint64(f[AccountBalanceField][8*i:], limb)
	}
	binary.LittleEndian.PutUint64(f[AccountNonceField][:], a.Nonce)
	binary.LittleEndian.PutUint64(f[AccountSourceCodeSizeField][:], a.SourceCodeSize)
	f[AccountSourceCodeHashField] = a.SourceCodeHash
	binary.LittleEndian.PutUint64(f[AccountRwasmCodeSizeField][:], a.RwasmCodeSize)
	f[AccountRwasmCodeHashField] = a.RwasmCodeHash
	return f
}

// AccountFromFields is the inverse of Fields.
func AccountFromFields(address common.Address, f AccountFields) *Account {
	a := &Account{Address: address}
	for i := range a.Balance {
		a.Balance[i] = binary.LittleEndian.Uint64(f[AccountBalanceField][8*i:])
	}
	a.Nonce = binary.LittleEndian.Uint64(f[AccountNonceField][:])
	a.SourceCodeSize = binary.LittleEndian.Uint64(f[AccountSourceCodeSizeField][:])
	a.SourceCodeHash = f[AccountSourceCodeHashField]
	a.RwasmCodeSize = binary.LittleEndian.Uint64(f[AccountRwasmCodeSizeField][:])
	a.RwasmCodeHash = f[AccountRwasmCodeHashField]
	return a
}

func accountFromWords(address common.Address, words [][32]byte) (*Account, error) {
	if len(words) != AccountFieldsCount {
		return nil, rwerrors.ErrBadAccountFields
	}
	var f AccountFields
	copy(f[:], words)
	return AccountFromFields(address, f), nil
}

// IncNonce bumps the nonce and returns the previous value. The nonce never
// reaches MaxUint64.
func (a *Account) IncNonce() (uint64, error) {
	prev := a.Nonce
	if prev+1 == ^uint64(0) {
		return prev, rwerrors.ErrNonceOverflow
	}
	a.Nonce = prev + 1
	return prev, nil
}

func (a *Account) SubBalance(amount *uint256.Int) error {
	if a.Balance.Lt(amount) {
		return rwerrors.ErrInsufficientBalance
	}
	a.Balance.Sub(&a.Balance, amount)
	return nil
}

func (a *Account) AddBalance(amount *uint256.Int) error {
	var sum uint256.Int
	if _, overflow := sum.AddOverflow(&a.Balance, amount); overflow {
		return rwerrors.ErrOverflowPayment
	}
	a.Balance = sum
	return nil
}

// Transfer moves amount from one account to another. Neither account changes
// when either side would fail.
func Transfer(from, to *Account, amount *uint256.Int) error {
	if from.Balance.Lt(amount) {
		return rwerrors.ErrInsufficientBalance
	}
	if from != to {
		var sum uint256.Int
		if _, overflow := sum.AddOverflow(&to.Balance, amount); overflow {
			return rwerrors.ErrOverflowPayment
		}
	}
	if err := from.SubBalance(amount); err != nil {
		return err
	}
	return to.AddBalance(amount)
}

// IsNotEmpty reports whether the account has a nonce or any code.
func (a *Account) IsNotEmpty() bool {
	return a.Nonce != 0 || a.SourceCodeHash != EmptySourceCodeHash || a.RwasmCodeHash != EmptyRwasmCodeHash
}

// CreateAddress is the CREATE address derived from the deployer and nonce.
func CreateAddress(deployer common.Address, nonce uint64) common.Address {
	return common.Address(crypto.CreateAddress(deployer.Eth(), nonce))
}

// CreateAddress2 is the CREATE2 address derived from deployer, salt and the
// keccak hash of the init code.
func CreateAddress2(deployer common.Address, salt *uint256.Int, initCodeHash common.Hash) common.Address {
	return common.Address(crypto.CreateAddress2(deployer.Eth(), salt.Bytes32(), initCodeHash.Bytes()))
}
