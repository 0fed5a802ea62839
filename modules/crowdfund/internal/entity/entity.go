package entity

import (
	"time"

	"github.com/crowdfund-network/crowdfund-engine/common"
	"github.com/gaze-network/uint128"
)

// Config holds the engine settings that are fixed once items have entered
// escrow. ItemSource is the address of the external token registry that
// mint/transfer/burn commands are issued against.
type Config struct {
	ItemSource         string
	AllowMintAfterSale bool
}

// SaleState is the lifecycle record of the currently active or settling
// sale. At most one exists system-wide; absence means NoSale.
type SaleState struct {
	StartTime    time.Time
	EndTime      time.Time
	Price        common.Coin
	MinItemsSold uint128.Uint128
	MaxPerWallet uint32

	ItemsSold         uint128.Uint128
	ItemsTransferred  uint128.Uint128
	ProceedsToForward uint128.Uint128
	ProceedsForwarded uint128.Uint128

	Recipient string

	// Optional end-condition policy extension. Each criterion defaults to
	// "not satisfied" when unset.
	TotalItems           uint128.Uint128
	TargetPercentageSold *uint32
	MaxDuration          *time.Duration
	OwnerEnded           bool

	// EndedAt is set when the first settlement step runs. Once set the
	// sale admits no further purchases, so ItemsSold and the chosen
	// settlement path are frozen for the rest of the drain.
	EndedAt *time.Time
}

// Ended reports whether the sale end time has passed at the given instant.
func (s SaleState) Ended(now time.Time) bool {
	return !now.Before(s.EndTime)
}

// MinimumMet reports whether enough items were sold to avoid the refund
// path.
func (s SaleState) MinimumMet() bool {
	return s.ItemsSold.Cmp(s.MinItemsSold) >= 0
}

// TokenRecord is an item registered as available for sale because its
// designated owner is the engine itself.
type TokenRecord struct {
	ID  string
	Seq int64
}

// MintItem is a single record in a Mint batch. Owner defaults to the
// engine when empty; items owned by a third party are forwarded without
// registration.
type MintItem struct {
	ID    string
	Owner string
	URI   string
}

// Purchase is one purchased item in a buyer's ledger entry. The settlement
// instructions captured at purchase time are replayed verbatim during
// settlement, since the funds-split strategy may change between calls.
type Purchase struct {
	Buyer        string
	Seq          int64
	ItemID       string
	TaxAmount    uint128.Uint128
	Instructions []OutboundCommand
}

// CommandKind discriminates the outbound commands the engine issues as
// side effects.
type CommandKind string

const (
	CommandMintItem     CommandKind = "mint_item"
	CommandTransferItem CommandKind = "transfer_item"
	CommandBurnItem     CommandKind = "burn_item"
	CommandSendPayment  CommandKind = "send_payment"
)

// OutboundCommand is an opaque instruction to an external collaborator:
// the token registry (mint/transfer/burn) or the payment system. Commands
// are written to the outbox in the same transaction as the state change
// that produced them.
type OutboundCommand struct {
	Kind      CommandKind `json:"kind"`
	Target    string      `json:"target"`
	ItemID    string      `json:"itemId,omitempty"`
	Recipient string      `json:"recipient,omitempty"`
	Amount    common.Coin `json:"amount,omitempty"`
	URI       string      `json:"uri,omitempty"`
}
