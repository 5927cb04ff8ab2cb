package relayer

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkedfinance/relayer/lib/config"
	"github.com/forkedfinance/relayer/lib/oracle/types"
	"github.com/forkedfinance/relayer/lib/store"
)

func TestRelayerRun(t *testing.T) {
	conf := config.Default()
	conf.Poll = 10
	conf.Port = "0"
	conf.BackoffBase = 0

	src := newFakeSource()
	lookup := &fakeLookup{resp: []response{{body: `"5000000"`}}}
	s := &fakeSetter{}
	db := &fakeDB{}

	r, err := New(conf, src, lookup, s, db, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)

	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, r.ls.Listening, time.Second, 5*time.Millisecond)

	tx := common.HexToHash("0xabc")
	src.register(tx, updateFields(userAddr, 8, 3000000))
	src.last(types.UpdateUserBalance).logs <- ethtypes.Log{TxHash: tx}

	require.Eventually(t, func() bool { return len(s.written()) == 1 }, time.Second, 5*time.Millisecond)

	c := s.written()[0]
	assert.Equal(t, 0, c.Balance.Cmp(big.NewInt(5000000)))
	assert.Equal(t, 0, c.ID.Cmp(big.NewInt(8)))
	assert.Equal(t, 0, c.Amount.Cmp(big.NewInt(3000000)))

	cancel()

	select {
	case err = <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relayer did not stop")
	}

	assert.Equal(t, 0, src.running())

	outs, err := db.GetOutcomes(userAddr.Hex(), 10)
	require.NoError(t, err)
	assert.Equal(t, store.Written, outs[0].Status)
}
