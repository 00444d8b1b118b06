package engine

import (
	"github.com/gagliardetto/solana-go"

	"github.com/codox/token-engine/internal/model"
)

var (
	seedConfig        = []byte("config")
	seedLottery       = []byte("lottery")
	seedHolder        = []byte("holder")
	seedPoolAuthority = []byte("pool-authority")
)

// Addresses are the fixed program-derived addresses of a deployment.
type Addresses struct {
	Config        model.AccountID `json:"config"`
	Lottery       model.AccountID `json:"lottery"`
	PoolAuthority model.AccountID `json:"pool_authority"`
}

// DeriveAddresses computes the program-derived addresses for programID.
func DeriveAddresses(programID model.AccountID) (Addresses, error) {
	var a Addresses
	var err error
	if a.Config, _, err = solana.FindProgramAddress([][]byte{seedConfig}, programID); err != nil {
		return Addresses{}, err
	}
	if a.Lottery, err = LotteryStateAddress(programID, a.Config); err != nil {
		return Addresses{}, err
	}
	if a.PoolAuthority, _, err = solana.FindProgramAddress([][]byte{seedPoolAuthority}, programID); err != nil {
		return Addresses{}, err
	}
	return a, nil
}

// HolderStateAddress is the address of holder's state record.
func HolderStateAddress(programID, holder model.AccountID) (model.AccountID, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{seedHolder, holder[:]}, programID)
	return addr, err
}

// LotteryStateAddress is the address of the lottery record belonging to
// config.
func LotteryStateAddress(programID, config model.AccountID) (model.AccountID, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{seedLottery, config[:]}, programID)
	return addr, err
}
