package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"stakevault/native/staking"
	"stakevault/storage"
)

var (
	// ErrInsufficientBalance is returned by Transfer when the sender cannot
	// cover the amount.
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	// ErrInvalidTransfer is returned for nil or non-positive amounts.
	ErrInvalidTransfer = errors.New("state: transfer amount must be positive")
)

var (
	commitmentPrefix      = []byte("staking/commitment:")
	commitmentCountPrefix = []byte("staking/commitment-count:")
	periodPrefix          = []byte("staking/period:")
	periodWeightPrefix    = []byte("staking/period-weight:")
	claimedPrefix         = []byte("staking/claimed:")
	balancePrefix         = []byte("ledger/balance:")

	currentPeriodKey = ethcrypto.Keccak256([]byte("staking/current-period"))
	windowKey        = ethcrypto.Keccak256([]byte("staking/eligibility-window"))
)

// Manager persists the staking engine's durable state and the token balance
// ledger over an abstract key-value database. Records are RLP encoded and
// keyed by keccak-hashed prefixed keys.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func indexedKey(prefix []byte, index uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], index)
	return ethcrypto.Keccak256(buf)
}

func ownerKey(prefix []byte, owner [20]byte) []byte {
	buf := make([]byte, len(prefix)+len(owner))
	copy(buf, prefix)
	copy(buf[len(prefix):], owner[:])
	return ethcrypto.Keccak256(buf)
}

func ownerIndexedKey(prefix []byte, owner [20]byte, index uint64) []byte {
	buf := make([]byte, len(prefix)+len(owner)+8)
	copy(buf, prefix)
	copy(buf[len(prefix):], owner[:])
	binary.BigEndian.PutUint64(buf[len(prefix)+len(owner):], index)
	return ethcrypto.Keccak256(buf)
}

// get reads a raw value, mapping backend not-found errors onto an absent
// result.
func (m *Manager) get(key []byte) ([]byte, bool, error) {
	data, err := m.db.Get(key)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	return data, true, nil
}

func (m *Manager) putUint64(key []byte, value uint64) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) getUint64(key []byte) (uint64, bool, error) {
	data, ok, err := m.get(key)
	if err != nil || !ok {
		return 0, false, err
	}
	var value uint64
	if err := rlp.DecodeBytes(data, &value); err != nil {
		return 0, false, fmt.Errorf("state: decode uint64: %w", err)
	}
	return value, true, nil
}

// CommitmentCount returns the number of commitments recorded for the owner.
func (m *Manager) CommitmentCount(owner [20]byte) (uint64, error) {
	count, _, err := m.getUint64(ownerKey(commitmentCountPrefix, owner))
	return count, err
}

// SetCommitmentCount records the owner's commitment count.
func (m *Manager) SetCommitmentCount(owner [20]byte, count uint64) error {
	return m.putUint64(ownerKey(commitmentCountPrefix, owner), count)
}

// Commitment loads one commitment record, returning nil when absent.
func (m *Manager) Commitment(owner [20]byte, index uint64) (*staking.Commitment, error) {
	data, ok, err := m.get(ownerIndexedKey(commitmentPrefix, owner, index))
	if err != nil || !ok {
		return nil, err
	}
	c := new(staking.Commitment)
	if err := rlp.DecodeBytes(data, c); err != nil {
		return nil, fmt.Errorf("state: decode commitment: %w", err)
	}
	return c, nil
}

// PutCommitment stores one commitment record at the owner's index.
func (m *Manager) PutCommitment(owner [20]byte, index uint64, c *staking.Commitment) error {
	encoded, err := rlp.EncodeToBytes(c)
	if err != nil {
		return err
	}
	return m.db.Put(ownerIndexedKey(commitmentPrefix, owner, index), encoded)
}

// Period loads a period record, returning nil when the period has not been
// materialised.
func (m *Manager) Period(index uint64) (*staking.Period, error) {
	data, ok, err := m.get(indexedKey(periodPrefix, index))
	if err != nil || !ok {
		return nil, err
	}
	p := new(staking.Period)
	if err := rlp.DecodeBytes(data, p); err != nil {
		return nil, fmt.Errorf("state: decode period: %w", err)
	}
	return p, nil
}

// PutPeriod stores a period record.
func (m *Manager) PutPeriod(p *staking.Period) error {
	encoded, err := rlp.EncodeToBytes(p)
	if err != nil {
		return err
	}
	return m.db.Put(indexedKey(periodPrefix, p.Index), encoded)
}

// CurrentPeriod returns the active period index and whether the sequence has
// been initialised.
func (m *Manager) CurrentPeriod() (uint64, bool, error) {
	return m.getUint64(currentPeriodKey)
}

// SetCurrentPeriod records the active period index.
func (m *Manager) SetCurrentPeriod(index uint64) error {
	return m.putUint64(currentPeriodKey, index)
}

// PeriodWeight returns the aggregate weight recorded for the period index.
// The map is keyed independently of period materialisation, so projected
// contributions for future periods are already present when the period is
// created.
func (m *Manager) PeriodWeight(index uint64) (*big.Int, error) {
	data, ok, err := m.get(indexedKey(periodWeightPrefix, index))
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	weight := new(big.Int)
	if err := rlp.DecodeBytes(data, weight); err != nil {
		return nil, fmt.Errorf("state: decode period weight: %w", err)
	}
	return weight, nil
}

// SetPeriodWeight records the aggregate weight for the period index.
func (m *Manager) SetPeriodWeight(index uint64, weight *big.Int) error {
	encoded, err := rlp.EncodeToBytes(weight)
	if err != nil {
		return err
	}
	return m.db.Put(indexedKey(periodWeightPrefix, index), encoded)
}

// Claimed reports whether the owner already settled the period.
func (m *Manager) Claimed(owner [20]byte, period uint64) (bool, error) {
	_, ok, err := m.get(ownerIndexedKey(claimedPrefix, owner, period))
	return ok, err
}

// SetClaimed marks the (owner, period) settlement record. Write-once: the
// engine checks Claimed before settling.
func (m *Manager) SetClaimed(owner [20]byte, period uint64) error {
	return m.db.Put(ownerIndexedKey(claimedPrefix, owner, period), []byte{0x01})
}

// EligibilityWindow returns the stored process-wide threshold in seconds, or
// zero when the operator has never set one.
func (m *Manager) EligibilityWindow() (uint64, error) {
	window, _, err := m.getUint64(windowKey)
	return window, err
}

// SetEligibilityWindow stores the process-wide threshold.
func (m *Manager) SetEligibilityWindow(seconds uint64) error {
	return m.putUint64(windowKey, seconds)
}

// Balance returns the token balance ledgered for the address.
func (m *Manager) Balance(addr [20]byte) (*big.Int, error) {
	data, ok, err := m.get(ownerKey(balancePrefix, addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	balance := new(big.Int)
	if err := rlp.DecodeBytes(data, balance); err != nil {
		return nil, fmt.Errorf("state: decode balance: %w", err)
	}
	return balance, nil
}

// SetBalance overwrites the token balance for the address. Used for genesis
// allocations and tests.
func (m *Manager) SetBalance(addr [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.db.Put(ownerKey(balancePrefix, addr), encoded)
}

// Transfer moves amount between ledger accounts, failing without any write
// when the sender's balance cannot cover it.
func (m *Manager) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidTransfer
	}
	fromBalance, err := m.Balance(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		// Both legs cancel out; writing either would double count against
		// the single stored balance.
		return nil
	}
	toBalance, err := m.Balance(to)
	if err != nil {
		return err
	}
	if err := m.SetBalance(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return m.SetBalance(to, new(big.Int).Add(toBalance, amount))
}
