package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/common/errs"
	"github.com/crowdfund-network/crowdfund-engine/internal/postgres"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/datagateway"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/gaze-network/uint128"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Repository implements datagateway.CrowdfundDataGateway on PostgreSQL.
// All singleton tables use a single fixed-true primary key row.
type Repository struct {
	db postgres.DB
	q  postgres.Queryable
	tx pgx.Tx
}

func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db, q: db}
}

func (repo *Repository) GetConfig(ctx context.Context) (*entity.Config, error) {
	var config entity.Config
	err := repo.q.QueryRow(ctx, `SELECT item_source, allow_mint_after_sale FROM crowdfund_config WHERE id = TRUE`).
		Scan(&config.ItemSource, &config.AllowMintAfterSale)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrap(errs.NotFound, "config is not set")
		}
		return nil, errors.Wrap(err, "cannot get config")
	}
	return &config, nil
}

func (repo *Repository) SetConfig(ctx context.Context, config entity.Config) error {
	_, err := repo.q.Exec(ctx, `
		INSERT INTO crowdfund_config (id, item_source, allow_mint_after_sale)
		VALUES (TRUE, $1, $2)
		ON CONFLICT (id) DO UPDATE SET item_source = $1, allow_mint_after_sale = $2`,
		config.ItemSource, config.AllowMintAfterSale,
	)
	if err != nil {
		return errors.Wrap(err, "cannot set config")
	}
	return nil
}

func (repo *Repository) GetSaleState(ctx context.Context) (*entity.SaleState, error) {
	var (
		state             entity.SaleState
		startTime         pgtype.Timestamp
		endTime           pgtype.Timestamp
		priceAmount       pgtype.Numeric
		minItemsSold      pgtype.Numeric
		itemsSold         pgtype.Numeric
		itemsTransferred  pgtype.Numeric
		proceedsToForward pgtype.Numeric
		proceedsForwarded pgtype.Numeric
		totalItems        pgtype.Numeric
		maxDurationNs     *int64
		endedAt           pgtype.Timestamp
	)
	err := repo.q.QueryRow(ctx, `
		SELECT start_time, end_time, price_denom, price_amount, min_items_sold, max_per_wallet,
			items_sold, items_transferred, proceeds_to_forward, proceeds_forwarded,
			recipient, total_items, target_percentage_sold, max_duration_ns, owner_ended, ended_at
		FROM crowdfund_sale_state WHERE id = TRUE`).
		Scan(&startTime, &endTime, &state.Price.Denom, &priceAmount, &minItemsSold, &state.MaxPerWallet,
			&itemsSold, &itemsTransferred, &proceedsToForward, &proceedsForwarded,
			&state.Recipient, &totalItems, &state.TargetPercentageSold, &maxDurationNs, &state.OwnerEnded, &endedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrap(errs.NotFound, "no sale state")
		}
		return nil, errors.Wrap(err, "cannot get sale state")
	}

	state.StartTime = startTime.Time.UTC()
	state.EndTime = endTime.Time.UTC()
	if maxDurationNs != nil {
		duration := time.Duration(*maxDurationNs)
		state.MaxDuration = &duration
	}
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		state.EndedAt = &t
	}
	for _, mapping := range []struct {
		dst *uint128.Uint128
		src pgtype.Numeric
	}{
		{&state.Price.Amount, priceAmount},
		{&state.MinItemsSold, minItemsSold},
		{&state.ItemsSold, itemsSold},
		{&state.ItemsTransferred, itemsTransferred},
		{&state.ProceedsToForward, proceedsToForward},
		{&state.ProceedsForwarded, proceedsForwarded},
		{&state.TotalItems, totalItems},
	} {
		value, err := uint128FromNumeric(mapping.src)
		if err != nil {
			return nil, errors.Wrap(err, "cannot parse sale state numeric")
		}
		*mapping.dst = value
	}
	return &state, nil
}

func (repo *Repository) SetSaleState(ctx context.Context, state entity.SaleState) error {
	numerics := make([]pgtype.Numeric, 0, 6)
	for _, value := range []uint128.Uint128{
		state.Price.Amount, state.MinItemsSold, state.ItemsSold,
		state.ItemsTransferred, state.ProceedsToForward, state.ProceedsForwarded,
	} {
		numeric, err := numericFromUint128(value)
		if err != nil {
			return errors.Wrap(err, "cannot convert sale state numeric")
		}
		numerics = append(numerics, numeric)
	}
	totalItems, err := numericFromUint128(state.TotalItems)
	if err != nil {
		return errors.Wrap(err, "cannot convert total items")
	}
	var maxDurationNs *int64
	if state.MaxDuration != nil {
		ns := state.MaxDuration.Nanoseconds()
		maxDurationNs = &ns
	}
	var endedAt pgtype.Timestamp
	if state.EndedAt != nil {
		endedAt = timestampFromTime(*state.EndedAt)
	}

	_, err = repo.q.Exec(ctx, `
		INSERT INTO crowdfund_sale_state (
			id, start_time, end_time, price_denom, price_amount, min_items_sold, max_per_wallet,
			items_sold, items_transferred, proceeds_to_forward, proceeds_forwarded,
			recipient, total_items, target_percentage_sold, max_duration_ns, owner_ended, ended_at
		) VALUES (TRUE, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			start_time = $1, end_time = $2, price_denom = $3, price_amount = $4,
			min_items_sold = $5, max_per_wallet = $6, items_sold = $7, items_transferred = $8,
			proceeds_to_forward = $9, proceeds_forwarded = $10, recipient = $11,
			total_items = $12, target_percentage_sold = $13, max_duration_ns = $14, owner_ended = $15,
			ended_at = $16`,
		timestampFromTime(state.StartTime), timestampFromTime(state.EndTime),
		state.Price.Denom, numerics[0], numerics[1], state.MaxPerWallet,
		numerics[2], numerics[3], numerics[4], numerics[5],
		state.Recipient, totalItems, state.TargetPercentageSold, maxDurationNs, state.OwnerEnded, endedAt,
	)
	if err != nil {
		return errors.Wrap(err, "cannot set sale state")
	}
	return nil
}

func (repo *Repository) ClearSaleState(ctx context.Context) error {
	_, err := repo.q.Exec(ctx, `DELETE FROM crowdfund_sale_state WHERE id = TRUE`)
	if err != nil {
		return errors.Wrap(err, "cannot clear sale state")
	}
	return nil
}

func (repo *Repository) GetSaleConducted(ctx context.Context) (bool, error) {
	var conducted bool
	err := repo.q.QueryRow(ctx, `SELECT conducted FROM crowdfund_sale_conducted WHERE id = TRUE`).Scan(&conducted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, errors.Wrap(err, "cannot get sale conducted flag")
	}
	return conducted, nil
}

func (repo *Repository) SetSaleConducted(ctx context.Context, conducted bool) error {
	_, err := repo.q.Exec(ctx, `
		INSERT INTO crowdfund_sale_conducted (id, conducted) VALUES (TRUE, $1)
		ON CONFLICT (id) DO UPDATE SET conducted = $1`, conducted)
	if err != nil {
		return errors.Wrap(err, "cannot set sale conducted flag")
	}
	return nil
}

func (repo *Repository) AddAvailableItem(ctx context.Context, id string) error {
	_, err := repo.q.Exec(ctx, `INSERT INTO crowdfund_available_items (id) VALUES ($1)`, id)
	if err != nil {
		return errors.Wrapf(err, "cannot add available item %q", id)
	}
	return nil
}

func (repo *Repository) RemoveAvailableItem(ctx context.Context, id string) error {
	tag, err := repo.q.Exec(ctx, `DELETE FROM crowdfund_available_items WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "cannot remove available item %q", id)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(errs.NotFound, "item %q is not available", id)
	}
	return nil
}

func (repo *Repository) HasAvailableItem(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := repo.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM crowdfund_available_items WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "cannot check available item")
	}
	return exists, nil
}

func (repo *Repository) ListAvailableItems(ctx context.Context, arg datagateway.ListAvailableItemsParams) ([]entity.TokenRecord, error) {
	rows, err := repo.q.Query(ctx, `
		SELECT seq, id FROM crowdfund_available_items
		WHERE $1 = '' OR seq > COALESCE((SELECT seq FROM crowdfund_available_items WHERE id = $1), 0)
		ORDER BY seq
		LIMIT $2`, arg.Cursor, arg.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "cannot list available items")
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.TokenRecord, error) {
		var record entity.TokenRecord
		err := row.Scan(&record.Seq, &record.ID)
		return record, errors.WithStack(err)
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot collect available items")
	}
	return records, nil
}

func (repo *Repository) CountAvailableItems(ctx context.Context) (uint128.Uint128, error) {
	var count int64
	err := repo.q.QueryRow(ctx, `SELECT COUNT(*) FROM crowdfund_available_items`).Scan(&count)
	if err != nil {
		return uint128.Zero, errors.Wrap(err, "cannot count available items")
	}
	return uint128.From64(uint64(count)), nil
}

func (repo *Repository) AddPurchases(ctx context.Context, purchases []entity.Purchase) error {
	for _, purchase := range purchases {
		taxAmount, err := numericFromUint128(purchase.TaxAmount)
		if err != nil {
			return errors.Wrap(err, "cannot convert tax amount")
		}
		instructions, err := jsonFromCommands(purchase.Instructions)
		if err != nil {
			return errors.Wrap(err, "cannot encode settlement instructions")
		}
		_, err = repo.q.Exec(ctx, `
			INSERT INTO crowdfund_purchases (buyer, item_id, tax_amount, instructions)
			VALUES ($1, $2, $3, $4)`,
			purchase.Buyer, purchase.ItemID, taxAmount, instructions,
		)
		if err != nil {
			return errors.Wrapf(err, "cannot add purchase of item %q", purchase.ItemID)
		}
	}
	return nil
}

func (repo *Repository) GetPurchasesByBuyer(ctx context.Context, buyer string) ([]entity.Purchase, error) {
	rows, err := repo.q.Query(ctx, `
		SELECT seq, buyer, item_id, tax_amount, instructions
		FROM crowdfund_purchases WHERE buyer = $1 ORDER BY seq`, buyer)
	if err != nil {
		return nil, errors.Wrap(err, "cannot get purchases by buyer")
	}
	purchases, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Purchase, error) {
		var (
			purchase     entity.Purchase
			taxAmount    pgtype.Numeric
			instructions []byte
		)
		if err := row.Scan(&purchase.Seq, &purchase.Buyer, &purchase.ItemID, &taxAmount, &instructions); err != nil {
			return entity.Purchase{}, errors.WithStack(err)
		}
		purchase.TaxAmount, err = uint128FromNumeric(taxAmount)
		if err != nil {
			return entity.Purchase{}, errors.WithStack(err)
		}
		purchase.Instructions, err = commandsFromJSON(instructions)
		if err != nil {
			return entity.Purchase{}, errors.WithStack(err)
		}
		return purchase, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot collect purchases")
	}
	return purchases, nil
}

func (repo *Repository) ListLedgerBuyers(ctx context.Context, limit int32) ([]string, error) {
	rows, err := repo.q.Query(ctx, `
		SELECT buyer FROM crowdfund_purchases
		GROUP BY buyer ORDER BY MIN(seq) LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "cannot list ledger buyers")
	}
	buyers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "cannot collect ledger buyers")
	}
	return buyers, nil
}

func (repo *Repository) DeletePurchasesByBuyer(ctx context.Context, buyer string) error {
	_, err := repo.q.Exec(ctx, `DELETE FROM crowdfund_purchases WHERE buyer = $1`, buyer)
	if err != nil {
		return errors.Wrapf(err, "cannot delete purchases of %q", buyer)
	}
	return nil
}

func (repo *Repository) CountLedgerBuyers(ctx context.Context) (int64, error) {
	var count int64
	err := repo.q.QueryRow(ctx, `SELECT COUNT(DISTINCT buyer) FROM crowdfund_purchases`).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "cannot count ledger buyers")
	}
	return count, nil
}

func (repo *Repository) AddOutboundCommands(ctx context.Context, commands []entity.OutboundCommand) error {
	for _, command := range commands {
		payload, err := jsonFromCommands([]entity.OutboundCommand{command})
		if err != nil {
			return errors.Wrap(err, "cannot encode outbound command")
		}
		_, err = repo.q.Exec(ctx, `INSERT INTO crowdfund_outbound_commands (payload) VALUES ($1)`, payload)
		if err != nil {
			return errors.Wrap(err, "cannot add outbound command")
		}
	}
	return nil
}
