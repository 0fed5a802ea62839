package engine

import (
	"math"
	"time"

	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/datagateway"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/fundsplit"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
)

const (
	// MaxMintBatch caps the number of items registered per Mint call.
	MaxMintBatch = 100

	// DefaultSettleLimit and MaxSettleLimit bound the work done by one
	// settlement step. The ceiling is enforced even if the caller requests
	// more.
	DefaultSettleLimit = int32(50)
	MaxSettleLimit     = int32(100)

	// DefaultMaxPerWallet applies when OpenSale omits the wallet cap.
	DefaultMaxPerWallet = uint32(1)

	// MaxWalletCap is the largest accepted per-wallet purchase cap.
	MaxWalletCap = uint32(math.MaxInt32)
)

// Engine is the sale lifecycle and settlement engine. Every mutating
// operation runs inside a single datagateway transaction: validation
// happens before any write, and the whole operation commits or none of it
// does. External calls are strictly serialized by the host, so the engine
// holds no locks of its own.
type Engine struct {
	dg       datagateway.CrowdfundDataGateway
	splitter fundsplit.Splitter

	// owner is the operator identity allowed to mint, open and end sales.
	owner string
	// escrowAddress is the engine's own identity; minted items owned by it
	// are registered as available for sale.
	escrowAddress string

	now func() time.Time
}

type Options struct {
	Owner         string
	EscrowAddress string

	// Now overrides the clock, for tests.
	Now func() time.Time
}

func New(dg datagateway.CrowdfundDataGateway, splitter fundsplit.Splitter, opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if splitter == nil {
		splitter = fundsplit.Nop{}
	}
	return &Engine{
		dg:            dg,
		splitter:      splitter,
		owner:         opts.Owner,
		escrowAddress: opts.EscrowAddress,
		now:           now,
	}
}

// Result carries the outbound commands an operation emitted, mirroring
// what was written to the outbox in the same transaction.
type Result struct {
	Commands []entity.OutboundCommand
}

func (e *Engine) isOwner(caller string) bool {
	return caller != "" && caller == e.owner
}
