package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/codox/token-engine/internal/engine"
	"github.com/codox/token-engine/internal/model"
	"github.com/codox/token-engine/internal/store"
)

// overlay stages account writes over a store. Nothing reaches the store
// until the runtime commits records(); dropping the overlay discards every
// write of a failed execution.
type overlay struct {
	store    store.Store
	staged   map[model.AccountID][]byte
	order    []model.AccountID
	writable map[model.AccountID]bool // nil allows every key
}

func newOverlay(st store.Store, writable map[model.AccountID]bool) *overlay {
	return &overlay{
		store:    st,
		staged:   make(map[model.AccountID][]byte),
		writable: writable,
	}
}

// Load returns staged data if present, otherwise the stored data. A missing
// account reads as nil.
func (o *overlay) Load(ctx context.Context, key model.AccountID) ([]byte, error) {
	if data, ok := o.staged[key]; ok {
		return data, nil
	}
	data, err := o.store.GetAccount(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (o *overlay) Save(_ context.Context, key model.AccountID, data []byte) error {
	if o.writable != nil && !o.writable[key] {
		return fmt.Errorf("%w: %s", engine.ErrAccountNotWritable, key)
	}
	if _, ok := o.staged[key]; !ok {
		o.order = append(o.order, key)
	}
	o.staged[key] = data
	return nil
}

func (o *overlay) records() []model.AccountRecord {
	out := make([]model.AccountRecord, 0, len(o.order))
	for _, k := range o.order {
		out = append(out, model.AccountRecord{Key: k, Data: o.staged[k]})
	}
	return out
}
