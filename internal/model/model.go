// Package model defines the persisted records and shared constants of the
// token engine. All token amounts are integer base units (u64); rates are
// basis points. Never float64 for money.
package model

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// AccountID is a 32-byte ledger account identifier. Its text form is base58.
type AccountID = solana.PublicKey

const (
	// BasisPointScale is 100% expressed in basis points.
	BasisPointScale = 10_000

	// MaxTaxRate caps the total transfer tax at 10%.
	MaxTaxRate = 1_000

	// DefaultLotteryInterval is the minimum time between lottery draws (24h).
	DefaultLotteryInterval int64 = 86_400

	// SecondsPerDay is the unit of holding-time multiplier growth.
	SecondsPerDay int64 = 86_400

	// BaseMultiplier is 1.0x on the holding multiplier scale.
	BaseMultiplier uint16 = 100

	// MaxMultiplier caps the holding multiplier at 5.0x.
	MaxMultiplier uint16 = 500

	// MultiplierStepPerDay is the multiplier growth per full day held.
	MultiplierStepPerDay = 2

	// RewardDivisor scales pool*balance*multiplier down to a reward amount.
	RewardDivisor = 10_000_000
)

// Rate is a basis-point quantity.
type Rate uint16

// Percent returns the rate as a percentage (300 -> 3).
func (r Rate) Percent() decimal.Decimal {
	return decimal.New(int64(r), -2)
}

// PoolConfiguration is the singleton configuration record of a deployed token.
// Layout: 233 bytes, see package codec.
type PoolConfiguration struct {
	Initialized    bool      `json:"initialized"`
	Authority      AccountID `json:"authority"`
	TokenMint      AccountID `json:"token_mint"`
	TaxVault       AccountID `json:"tax_vault"`
	ReflectionPool AccountID `json:"reflection_pool"`
	StakingPool    AccountID `json:"staking_pool"`
	LotteryPool    AccountID `json:"lottery_pool"`

	TaxRate        uint16 `json:"tax_rate"`
	ReflectionRate uint16 `json:"reflection_rate"`
	StakingRate    uint16 `json:"staking_rate"`
	LotteryRate    uint16 `json:"lottery_rate"`

	TotalStaked                uint64 `json:"total_staked"`
	TotalReflectionDistributed uint64 `json:"total_reflection_distributed"`

	LastLotteryDraw int64 `json:"last_lottery_draw"` // unix seconds
	LotteryInterval int64 `json:"lottery_interval"`  // seconds
}

// HolderState tracks a single holder's staking and reflection claims.
// Layout: 66 bytes, see package codec.
type HolderState struct {
	Holder              AccountID `json:"holder"`
	LastReflectionClaim int64     `json:"last_reflection_claim"` // 0 = never claimed
	StakedAmount        uint64    `json:"staked_amount"`
	StakeTime           int64     `json:"stake_time"` // time of the first stake
	TotalClaimed        uint64    `json:"total_claimed"`
	HoldingMultiplier   uint16    `json:"holding_multiplier"` // 100 = 1.0x
}

// LotteryState is the variable-length lottery record.
type LotteryState struct {
	Participants []AccountID `json:"participants"` // entry order
	CurrentPrize uint64      `json:"current_prize"`
	LastWinner   AccountID   `json:"last_winner"`
	TotalDraws   uint64      `json:"total_draws"`
}

// Token account states.
const (
	TokenAccountUninitialized uint8 = iota
	TokenAccountInitialized
	TokenAccountFrozen
)

// TokenAccount is a balance-holding ledger account.
// Layout: 73 bytes, see package codec.
type TokenAccount struct {
	Mint   AccountID `json:"mint"`
	Owner  AccountID `json:"owner"`
	Amount uint64    `json:"amount"`
	State  uint8     `json:"state"`
}

// AccountRecord is an account key with its raw stored bytes.
type AccountRecord struct {
	Key  AccountID
	Data []byte
}

// LedgerEntry is an immutable record of one token movement executed by a
// transaction.
type LedgerEntry struct {
	ID          string    `json:"id"`
	TxID        string    `json:"tx_id"`
	Instruction string    `json:"instruction"`
	Source      AccountID `json:"source"`
	Destination AccountID `json:"destination"`
	Authority   AccountID `json:"authority"`
	Amount      uint64    `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
}
