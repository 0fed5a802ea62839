package config

import (
	"time"

	"github.com/crowdfund-network/crowdfund-engine/internal/postgres"
)

type Config struct {
	Postgres postgres.Config `mapstructure:"postgres"`

	// InMemory swaps the Postgres repository for the in-memory one. Local
	// development only; nothing survives a restart.
	InMemory bool `mapstructure:"in_memory"`

	// Owner is the operator identity allowed to mint, open and end sales.
	Owner string `mapstructure:"owner"`
	// EscrowAddress is the engine's own identity. Minted items owned by it
	// are held in escrow and offered for sale.
	EscrowAddress string `mapstructure:"escrow_address"`

	// ItemSource is the address of the external token registry commands are
	// issued against. AllowMintAfterSale permits topping up inventory once
	// a sale has been conducted.
	ItemSource         string `mapstructure:"item_source"`
	AllowMintAfterSale bool   `mapstructure:"allow_mint_after_sale"`

	// TaxRate diverts a fraction of each unit price to TaxCollector at
	// purchase time, as a decimal string in [0, 1]. Empty disables the
	// split.
	TaxRate      string `mapstructure:"tax_rate"`
	TaxCollector string `mapstructure:"tax_collector"`

	// SettleInterval is how often the background drainer pokes the sale for
	// end conditions and settlement work. Default is 15s.
	SettleInterval time.Duration `mapstructure:"settle_interval"`
}
