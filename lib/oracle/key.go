package oracle

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tarancss/hd"

	"github.com/forkedfinance/relayer/lib/config"
)

// ErrNoKey is returned when the configuration has neither a private key nor an HD seed.
var ErrNoKey = errors.New("no signing key configured")

// Key returns the signing key of the relayer: the configured private key or, if empty, the key derived from the HD
// seed for the configured wallet and index on the external chain.
func Key(conf config.ServiceConfig) (*ecdsa.PrivateKey, error) {
	if conf.PrivateKey != "" {
		k, err := crypto.HexToECDSA(strings.TrimPrefix(conf.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("oracle: invalid private key: %w", err)
		}

		return k, nil
	}

	if conf.HDSeed == "" {
		return nil, ErrNoKey
	}

	seed, err := hex.DecodeString(strings.TrimPrefix(conf.HDSeed, "0x"))
	if err != nil {
		return nil, fmt.Errorf("oracle: invalid hd seed: %w", err)
	}

	w, err := hd.Init(seed)
	if err != nil {
		return nil, fmt.Errorf("oracle: cannot load hd wallet: %w", err)
	}

	_, key, _, err := w.Address(conf.HDWallet, hd.External, conf.HDIndex)
	if err != nil {
		return nil, fmt.Errorf("oracle: cannot derive key %d/%d: %w", conf.HDWallet, conf.HDIndex, err)
	}

	return crypto.ToECDSA(key)
}
