package runtime

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/codox/token-engine/internal/model"
)

// AccountMeta is one positional account of a transaction with the role the
// submitter requests for it.
type AccountMeta struct {
	Key      model.AccountID `json:"key"`
	Signer   bool            `json:"signer"`
	Writable bool            `json:"writable"`
}

func (m AccountMeta) flags() uint8 {
	var f uint8
	if m.Signer {
		f |= 1
	}
	if m.Writable {
		f |= 2
	}
	return f
}

// Transaction is a signed instruction submission. Signatures are ed25519
// over Message, one per distinct signer in account order.
type Transaction struct {
	Timestamp  int64
	Accounts   []AccountMeta
	Data       []byte
	Signatures []solana.Signature
}

var le = binary.LittleEndian

// Message returns the canonical bytes that signers sign:
//
//	i64 timestamp | u16 account count | (key, u8 flags)* | u32 data length | data
func (tx *Transaction) Message() ([]byte, error) {
	if len(tx.Accounts) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d accounts", ErrInvalidTransaction, len(tx.Accounts))
	}
	if uint64(len(tx.Data)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes of instruction data", ErrInvalidTransaction, len(tx.Data))
	}

	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteInt64(tx.Timestamp, le); err != nil {
		return nil, err
	}
	if err := enc.WriteUint16(uint16(len(tx.Accounts)), le); err != nil {
		return nil, err
	}
	for _, m := range tx.Accounts {
		if err := enc.WriteBytes(m.Key[:], false); err != nil {
			return nil, err
		}
		if err := enc.WriteUint8(m.flags()); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteUint32(uint32(len(tx.Data)), le); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(tx.Data, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Signers returns the distinct signer keys in account order.
func (tx *Transaction) Signers() []model.AccountID {
	var out []model.AccountID
	seen := make(map[model.AccountID]bool)
	for _, m := range tx.Accounts {
		if m.Signer && !seen[m.Key] {
			seen[m.Key] = true
			out = append(out, m.Key)
		}
	}
	return out
}

// Sign replaces the signatures using keys, which must cover every signer.
func (tx *Transaction) Sign(keys ...solana.PrivateKey) error {
	msg, err := tx.Message()
	if err != nil {
		return err
	}
	byPub := make(map[model.AccountID]solana.PrivateKey, len(keys))
	for _, k := range keys {
		byPub[k.PublicKey()] = k
	}
	signers := tx.Signers()
	sigs := make([]solana.Signature, 0, len(signers))
	for _, s := range signers {
		k, ok := byPub[s]
		if !ok {
			return fmt.Errorf("%w: no key for %s", ErrMissingSignature, s)
		}
		sig, err := k.Sign(msg)
		if err != nil {
			return fmt.Errorf("sign for %s: %w", s, err)
		}
		sigs = append(sigs, sig)
	}
	tx.Signatures = sigs
	return nil
}

// Verify checks that every signer produced a valid signature.
func (tx *Transaction) Verify() error {
	signers := tx.Signers()
	if len(signers) == 0 {
		return fmt.Errorf("%w: transaction has no signers", ErrMissingSignature)
	}
	if len(tx.Signatures) != len(signers) {
		return fmt.Errorf("%w: %d signers, %d signatures", ErrMissingSignature, len(signers), len(tx.Signatures))
	}
	msg, err := tx.Message()
	if err != nil {
		return err
	}
	for i, s := range signers {
		if !tx.Signatures[i].Verify(s, msg) {
			return fmt.Errorf("%w: signer %s", ErrSignatureInvalid, s)
		}
	}
	return nil
}
