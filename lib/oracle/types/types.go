// Package types defines the balance oracle events and their validation.
package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Event names emitted by the balance oracle contract.
const (
	UpdateUserBalance = "UpdateUserBalanceEvent"
	SetUserBalance    = "SetUserBalanceEvent"
)

// AmountDecimals is the number of decimals of the event values.
const AmountDecimals int32 = 6

// Update is an UpdateUserBalanceEvent: the balance of Address has to be refreshed. ID is nil for contracts that
// identify requests by address only.
type Update struct {
	Address string          `json:"address"`
	Value   *big.Int        `json:"value"`
	Amount  decimal.Decimal `json:"amount"`
	ID      *big.Int        `json:"id,omitempty"`
	TxHash  string          `json:"txHash,omitempty"`
	Index   uint            `json:"index"`
}

// Settled is a SetUserBalanceEvent: the contract reports a balance already written.
type Settled struct {
	Balance *big.Int        `json:"balance"`
	Address string          `json:"address"`
	Value   *big.Int        `json:"value"`
	Amount  decimal.Decimal `json:"amount"`
	TxHash  string          `json:"txHash,omitempty"`
	Index   uint            `json:"index"`
}

// Error codes.
var (
	ErrUnknownEvent = errors.New("event not defined in the oracle ABI")
	ErrMissingField = errors.New("event data does not contain a required field")
	ErrBadValue     = errors.New("event field has a wrong type or value")
)

// field aliases accepted for each logical field, so both protocol generations decode.
var (
	addressNames = []string{"address", "userAddress", "user"}
	valueNames   = []string{"value", "amount"}
	balanceNames = []string{"balance", "userBalance"}
	idNames      = []string{"id", "requestId"}
)

// ToAmount renders a raw event value with AmountDecimals.
func ToAmount(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v, -AmountDecimals)
}

// DecodeUpdate builds an Update from the unpacked event fields. Address and value are required, id is optional.
func DecodeUpdate(fields map[string]interface{}) (u Update, err error) {
	if u.Address, err = address(fields); err != nil {
		return
	}

	if u.Value, err = number(fields, valueNames, true); err != nil {
		return
	}

	if u.ID, err = number(fields, idNames, false); err != nil {
		return
	}

	u.Amount = ToAmount(u.Value)

	return
}

// DecodeSettled builds a Settled from the unpacked event fields. All fields are required.
func DecodeSettled(fields map[string]interface{}) (s Settled, err error) {
	if s.Address, err = address(fields); err != nil {
		return
	}

	if s.Balance, err = number(fields, balanceNames, true); err != nil {
		return
	}

	if s.Value, err = number(fields, valueNames, true); err != nil {
		return
	}

	s.Amount = ToAmount(s.Value)

	return
}

func lookup(fields map[string]interface{}, names []string) (interface{}, string, bool) {
	for _, n := range names {
		if v, ok := fields[n]; ok {
			return v, n, true
		}
	}

	return nil, names[0], false
}

func address(fields map[string]interface{}) (string, error) {
	v, name, ok := lookup(fields, addressNames)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingField, name)
	}

	a, ok := v.(common.Address)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T", ErrBadValue, name, v)
	}

	if a == (common.Address{}) {
		return "", fmt.Errorf("%w: %s is the zero address", ErrBadValue, name)
	}

	return a.Hex(), nil
}

func number(fields map[string]interface{}, names []string, required bool) (*big.Int, error) {
	v, name, ok := lookup(fields, names)
	if !ok {
		if required {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, name)
		}

		return nil, nil
	}

	n, ok := v.(*big.Int)
	if !ok || n == nil {
		return nil, fmt.Errorf("%w: %s is %T", ErrBadValue, name, v)
	}

	if n.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s is negative", ErrBadValue, name)
	}

	return new(big.Int).Set(n), nil
}
