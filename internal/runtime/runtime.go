// Package runtime is the host the engine runs in. It authenticates signed
// transactions, gives each one exclusive access to the account set, and
// commits every account write of a successful instruction to the store in
// one atomic batch. A failed instruction leaves the store untouched.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/codox/token-engine/internal/engine"
	"github.com/codox/token-engine/internal/instruction"
	"github.com/codox/token-engine/internal/metrics"
	"github.com/codox/token-engine/internal/model"
	"github.com/codox/token-engine/internal/store"
	"github.com/codox/token-engine/internal/token"
)

var (
	ErrInvalidTransaction   = errors.New("runtime: malformed transaction")
	ErrMissingSignature     = errors.New("runtime: missing signature")
	ErrSignatureInvalid     = errors.New("runtime: signature verification failed")
	ErrTransactionExpired   = errors.New("runtime: transaction timestamp outside the accepted window")
	ErrDuplicateTransaction = errors.New("runtime: transaction already processed")
)

// DefaultMaxTransactionAge is how far a transaction timestamp may lie from
// the runtime clock.
const DefaultMaxTransactionAge = 2 * time.Minute

// Receipt describes an executed transaction.
type Receipt struct {
	ID          string           `json:"id"`
	Signature   string           `json:"signature"`
	Instruction instruction.Kind `json:"instruction"`
	Outcome     *engine.Outcome  `json:"outcome"`
	Transfers   []token.Movement `json:"transfers"`
	ExecutedAt  time.Time        `json:"executed_at"`
}

// Notifier is told about every committed transaction.
type Notifier interface {
	Notify(r *Receipt)
}

type Config struct {
	Logger            *slog.Logger
	Clock             clockwork.Clock
	Store             store.Store
	Engine            *engine.Engine
	MaxTransactionAge time.Duration
	Notifier          Notifier
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Engine == nil {
		return errors.New("engine is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.MaxTransactionAge <= 0 {
		cfg.MaxTransactionAge = DefaultMaxTransactionAge
	}
	return nil
}

// Runtime executes transactions one at a time.
type Runtime struct {
	log *slog.Logger
	cfg Config

	// primary is the authoritative store behind cfg.Store. Execution reads
	// bypass any cache; queries and commits go through cfg.Store.
	primary store.Store

	mu   sync.Mutex
	seen map[solana.Signature]time.Time
}

func New(cfg Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runtime{
		log:     cfg.Logger,
		cfg:     cfg,
		primary: store.Primary(cfg.Store),
		seen:    make(map[solana.Signature]time.Time),
	}, nil
}

// Engine returns the engine transactions run against.
func (r *Runtime) Engine() *engine.Engine { return r.cfg.Engine }

// Execute authenticates tx, runs its instruction and commits the result.
func (r *Runtime) Execute(ctx context.Context, tx *Transaction) (*Receipt, error) {
	ix, err := instruction.Decode(tx.Data)
	if err != nil {
		metrics.RejectedTransactions.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}
	if err := tx.Verify(); err != nil {
		metrics.RejectedTransactions.WithLabelValues("signature").Inc()
		return nil, err
	}

	kind := ix.Kind().String()
	start := r.cfg.Clock.Now()

	// Serialize execution: one transaction holds every account at a time.
	r.mu.Lock()
	receipt, err := r.execute(ctx, tx, ix)
	r.mu.Unlock()

	metrics.InstructionLatency.WithLabelValues(kind).Observe(r.cfg.Clock.Since(start).Seconds())
	if err != nil {
		metrics.InstructionsTotal.WithLabelValues(kind, "error").Inc()
		r.log.Warn("instruction failed", "instruction", kind, "error", err)
		return nil, err
	}
	metrics.InstructionsTotal.WithLabelValues(kind, "ok").Inc()
	recordOutcome(ix, receipt.Outcome)

	r.log.Info("transaction committed",
		"id", receipt.ID,
		"instruction", kind,
		"transfers", len(receipt.Transfers),
	)
	if r.cfg.Notifier != nil {
		r.cfg.Notifier.Notify(receipt)
	}
	return receipt, nil
}

func (r *Runtime) execute(ctx context.Context, tx *Transaction, ix instruction.Instruction) (*Receipt, error) {
	// Expiry and pruning share one reading of the clock, so a signature
	// stays remembered for as long as its timestamp is accepted.
	now := r.cfg.Clock.Now()
	signedAt := time.Unix(tx.Timestamp, 0)
	if age := now.Sub(signedAt); age > r.cfg.MaxTransactionAge || age < -r.cfg.MaxTransactionAge {
		metrics.RejectedTransactions.WithLabelValues("expired").Inc()
		return nil, fmt.Errorf("%w: signed at %s", ErrTransactionExpired, signedAt.UTC().Format(time.RFC3339))
	}
	r.pruneSeen(now)
	sig := tx.Signatures[0]
	if _, dup := r.seen[sig]; dup {
		metrics.RejectedTransactions.WithLabelValues("duplicate").Inc()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTransaction, sig)
	}

	// Repeated keys share one handle with the union of requested roles.
	byKey := make(map[model.AccountID]*engine.AccountInfo, len(tx.Accounts))
	infos := make([]*engine.AccountInfo, 0, len(tx.Accounts))
	ov := newOverlay(r.primary, nil)
	for _, m := range tx.Accounts {
		if a, ok := byKey[m.Key]; ok {
			a.Signer = a.Signer || m.Signer
			a.Writable = a.Writable || m.Writable
			infos = append(infos, a)
			continue
		}
		data, err := ov.Load(ctx, m.Key)
		if err != nil {
			return nil, fmt.Errorf("load account %s: %w", m.Key, err)
		}
		a := &engine.AccountInfo{Key: m.Key, Data: data, Signer: m.Signer, Writable: m.Writable}
		byKey[m.Key] = a
		infos = append(infos, a)
	}
	ov.writable = make(map[model.AccountID]bool, len(byKey))
	for k, a := range byKey {
		if a.Writable {
			ov.writable[k] = true
		}
	}

	tokens := token.NewProgram(ov)
	out, err := r.cfg.Engine.Process(ctx, tokens, ix, infos)
	if err != nil {
		return nil, err
	}
	for _, m := range tx.Accounts {
		if a := byKey[m.Key]; a.Dirty() {
			if err := ov.Save(ctx, a.Key, a.Data); err != nil {
				return nil, err
			}
		}
	}

	receipt := &Receipt{
		ID:          uuid.NewString(),
		Signature:   sig.String(),
		Instruction: ix.Kind(),
		Outcome:     out,
		Transfers:   tokens.Journal(),
		ExecutedAt:  r.cfg.Clock.Now().UTC(),
	}
	entries := make([]model.LedgerEntry, 0, len(receipt.Transfers))
	for _, mv := range receipt.Transfers {
		entries = append(entries, model.LedgerEntry{
			ID:          uuid.NewString(),
			TxID:        receipt.ID,
			Instruction: ix.Kind().String(),
			Source:      mv.Source,
			Destination: mv.Destination,
			Authority:   mv.Authority,
			Amount:      mv.Amount,
			Timestamp:   receipt.ExecutedAt,
		})
	}
	if err := r.cfg.Store.Commit(ctx, ov.records(), entries); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	r.seen[sig] = signedAt
	return receipt, nil
}

// pruneSeen forgets signatures old enough that the expiry check rejects
// them anyway.
func (r *Runtime) pruneSeen(now time.Time) {
	cutoff := now.Add(-r.cfg.MaxTransactionAge)
	for sig, at := range r.seen {
		if at.Before(cutoff) {
			delete(r.seen, sig)
		}
	}
}

func recordOutcome(ix instruction.Instruction, out *engine.Outcome) {
	switch ix := ix.(type) {
	case instruction.Transfer:
		metrics.TransferVolume.Add(float64(out.Split.Amount))
		metrics.TaxCollected.WithLabelValues("reflection").Add(float64(out.Split.Reflection))
		metrics.TaxCollected.WithLabelValues("staking").Add(float64(out.Split.Staking))
		metrics.TaxCollected.WithLabelValues("lottery").Add(float64(out.Split.Lottery))
	case instruction.Stake:
		metrics.TokensStaked.Add(float64(ix.Amount))
	case instruction.ClaimReflection:
		metrics.ReflectionPaid.Add(float64(out.Reward.Reward))
	case instruction.DrawLottery:
		metrics.LotteryDraws.Inc()
	}
}
