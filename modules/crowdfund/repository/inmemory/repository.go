// Package inmemory implements the crowdfund data gateway on plain Go
// maps and slices. It backs the engine tests and the local development
// mode; transactions copy the whole store on begin and swap it back on
// commit, which is fine at the scale of a single sale.
package inmemory

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/datagateway"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/gaze-network/uint128"
	"github.com/samber/lo"
)

type store struct {
	config        *entity.Config
	saleState     *entity.SaleState
	saleConducted bool
	items         []entity.TokenRecord
	purchases     []entity.Purchase
	outbox        []entity.OutboundCommand
	nextItemSeq   int64
	nextSeq       int64
}

func (s *store) clone() *store {
	clone := &store{
		saleConducted: s.saleConducted,
		items:         append([]entity.TokenRecord(nil), s.items...),
		purchases:     append([]entity.Purchase(nil), s.purchases...),
		outbox:        append([]entity.OutboundCommand(nil), s.outbox...),
		nextItemSeq:   s.nextItemSeq,
		nextSeq:       s.nextSeq,
	}
	if s.config != nil {
		config := *s.config
		clone.config = &config
	}
	if s.saleState != nil {
		state := *s.saleState
		clone.saleState = &state
	}
	return clone
}

type Repository struct {
	mu sync.Mutex

	store  *store
	parent *Repository
}

var ErrTxAlreadyExists = errors.New("Transaction already exists. Call Commit() or Rollback() first.")

// lock serializes direct (non-transactional) access with open transactions.
// Inside a transaction the child already owns the parent's mutex.
func (r *Repository) lock() func() {
	if r.parent != nil {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func NewRepository() *Repository {
	return &Repository{store: &store{}}
}

func (r *Repository) BeginCrowdfundTx(_ context.Context) (datagateway.CrowdfundDataGatewayWithTx, error) {
	if r.parent != nil {
		return nil, errors.WithStack(ErrTxAlreadyExists)
	}
	r.mu.Lock()
	return &Repository{store: r.store.clone(), parent: r}, nil
}

func (r *Repository) Commit(_ context.Context) error {
	if r.parent == nil {
		return nil
	}
	r.parent.store = r.store
	r.parent.mu.Unlock()
	r.parent = nil
	return nil
}

func (r *Repository) Rollback(_ context.Context) error {
	if r.parent == nil {
		return nil
	}
	r.parent.mu.Unlock()
	r.parent = nil
	return nil
}

func (r *Repository) GetConfig(_ context.Context) (*entity.Config, error) {
	defer r.lock()()
	if r.store.config == nil {
		return nil, errors.Wrap(errs.NotFound, "config is not set")
	}
	config := *r.store.config
	return &config, nil
}

func (r *Repository) SetConfig(_ context.Context, config entity.Config) error {
	defer r.lock()()
	r.store.config = &config
	return nil
}

func (r *Repository) GetSaleState(_ context.Context) (*entity.SaleState, error) {
	defer r.lock()()
	if r.store.saleState == nil {
		return nil, errors.Wrap(errs.NotFound, "no sale state")
	}
	state := *r.store.saleState
	return &state, nil
}

func (r *Repository) SetSaleState(_ context.Context, state entity.SaleState) error {
	defer r.lock()()
	r.store.saleState = &state
	return nil
}

func (r *Repository) ClearSaleState(_ context.Context) error {
	defer r.lock()()
	r.store.saleState = nil
	return nil
}

func (r *Repository) GetSaleConducted(_ context.Context) (bool, error) {
	defer r.lock()()
	return r.store.saleConducted, nil
}

func (r *Repository) SetSaleConducted(_ context.Context, conducted bool) error {
	defer r.lock()()
	r.store.saleConducted = conducted
	return nil
}

func (r *Repository) AddAvailableItem(_ context.Context, id string) error {
	defer r.lock()()
	if lo.ContainsBy(r.store.items, func(record entity.TokenRecord) bool { return record.ID == id }) {
		return errors.Wrapf(errs.Duplicate, "item %q is already registered", id)
	}
	r.store.nextItemSeq++
	r.store.items = append(r.store.items, entity.TokenRecord{ID: id, Seq: r.store.nextItemSeq})
	return nil
}

func (r *Repository) RemoveAvailableItem(_ context.Context, id string) error {
	defer r.lock()()
	before := len(r.store.items)
	r.store.items = lo.Reject(r.store.items, func(record entity.TokenRecord, _ int) bool { return record.ID == id })
	if len(r.store.items) == before {
		return errors.Wrapf(errs.NotFound, "item %q is not available", id)
	}
	return nil
}

func (r *Repository) HasAvailableItem(_ context.Context, id string) (bool, error) {
	defer r.lock()()
	return lo.ContainsBy(r.store.items, func(record entity.TokenRecord) bool { return record.ID == id }), nil
}

func (r *Repository) ListAvailableItems(_ context.Context, arg datagateway.ListAvailableItemsParams) ([]entity.TokenRecord, error) {
	defer r.lock()()
	records := r.store.items
	if arg.Cursor != "" {
		_, index, found := lo.FindIndexOf(records, func(record entity.TokenRecord) bool { return record.ID == arg.Cursor })
		if found {
			records = records[index+1:]
		}
	}
	if int32(len(records)) > arg.Limit {
		records = records[:arg.Limit]
	}
	return append([]entity.TokenRecord(nil), records...), nil
}

func (r *Repository) CountAvailableItems(_ context.Context) (uint128.Uint128, error) {
	defer r.lock()()
	return uint128.From64(uint64(len(r.store.items))), nil
}

func (r *Repository) AddPurchases(_ context.Context, purchases []entity.Purchase) error {
	defer r.lock()()
	for _, purchase := range purchases {
		r.store.nextSeq++
		purchase.Seq = r.store.nextSeq
		r.store.purchases = append(r.store.purchases, purchase)
	}
	return nil
}

func (r *Repository) GetPurchasesByBuyer(_ context.Context, buyer string) ([]entity.Purchase, error) {
	defer r.lock()()
	return lo.Filter(r.store.purchases, func(purchase entity.Purchase, _ int) bool {
		return purchase.Buyer == buyer
	}), nil
}

func (r *Repository) ListLedgerBuyers(_ context.Context, limit int32) ([]string, error) {
	defer r.lock()()
	buyers := lo.Uniq(lo.Map(r.store.purchases, func(purchase entity.Purchase, _ int) string {
		return purchase.Buyer
	}))
	if int32(len(buyers)) > limit {
		buyers = buyers[:limit]
	}
	return buyers, nil
}

func (r *Repository) DeletePurchasesByBuyer(_ context.Context, buyer string) error {
	defer r.lock()()
	r.store.purchases = lo.Reject(r.store.purchases, func(purchase entity.Purchase, _ int) bool {
		return purchase.Buyer == buyer
	})
	return nil
}

func (r *Repository) CountLedgerBuyers(_ context.Context) (int64, error) {
	defer r.lock()()
	buyers := lo.Uniq(lo.Map(r.store.purchases, func(purchase entity.Purchase, _ int) string {
		return purchase.Buyer
	}))
	return int64(len(buyers)), nil
}

func (r *Repository) AddOutboundCommands(_ context.Context, commands []entity.OutboundCommand) error {
	defer r.lock()()
	r.store.outbox = append(r.store.outbox, commands...)
	return nil
}

// Outbox returns every command written so far, in order. Test helper.
func (r *Repository) Outbox() []entity.OutboundCommand {
	defer r.lock()()
	return append([]entity.OutboundCommand(nil), r.store.outbox...)
}
