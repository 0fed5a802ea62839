package postgres

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/crowdfund-network/crowdfund-engine/modules/crowdfund/internal/entity"
	"github.com/gaze-network/uint128"
	"github.com/jackc/pgx/v5/pgtype"
)

func uint128FromNumeric(src pgtype.Numeric) (uint128.Uint128, error) {
	if !src.Valid {
		return uint128.Zero, nil
	}
	bytes, err := src.MarshalJSON()
	if err != nil {
		return uint128.Zero, errors.WithStack(err)
	}
	result, err := uint128.FromString(string(bytes))
	if err != nil {
		return uint128.Zero, errors.WithStack(err)
	}
	return result, nil
}

func numericFromUint128(src uint128.Uint128) (pgtype.Numeric, error) {
	bytes := []byte(src.String())
	var result pgtype.Numeric
	if err := result.UnmarshalJSON(bytes); err != nil {
		return pgtype.Numeric{}, errors.WithStack(err)
	}
	return result, nil
}

func timestampFromTime(src time.Time) pgtype.Timestamp {
	return pgtype.Timestamp{Time: src.UTC(), Valid: true}
}

func commandsFromJSON(src []byte) ([]entity.OutboundCommand, error) {
	if len(src) == 0 {
		return nil, nil
	}
	var commands []entity.OutboundCommand
	if err := json.Unmarshal(src, &commands); err != nil {
		return nil, errors.WithStack(err)
	}
	return commands, nil
}

func jsonFromCommands(src []entity.OutboundCommand) ([]byte, error) {
	if len(src) == 0 {
		return []byte("[]"), nil
	}
	bytes, err := json.Marshal(src)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return bytes, nil
}
