// Package oracle implements the connection to the balance oracle contract: event subscriptions, event decoding and
// the setUserBalance transaction.
package oracle

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"

	"github.com/forkedfinance/relayer/lib/config"
	"github.com/forkedfinance/relayer/lib/oracle/types"
)

// SetMethod is the contract method used to commit a balance.
const SetMethod = "setUserBalance"

// DefaultABI is the balance oracle ABI used when no ABI file is configured.
const DefaultABI = `[
{"anonymous":false,"type":"event","name":"UpdateUserBalanceEvent","inputs":[
 {"indexed":true,"name":"userAddress","type":"address"},
 {"indexed":false,"name":"id","type":"uint256"},
 {"indexed":false,"name":"value","type":"uint256"}]},
{"anonymous":false,"type":"event","name":"SetUserBalanceEvent","inputs":[
 {"indexed":false,"name":"userBalance","type":"uint256"},
 {"indexed":true,"name":"userAddress","type":"address"},
 {"indexed":false,"name":"value","type":"uint256"}]},
{"type":"function","name":"setUserBalance","stateMutability":"nonpayable","outputs":[],"inputs":[
 {"name":"userBalance","type":"uint256"},
 {"name":"userAddress","type":"address"},
 {"name":"callerAddress","type":"address"},
 {"name":"id","type":"uint256"},
 {"name":"amount","type":"uint256"}]}
]`

// Error codes.
var (
	ErrNoMethod     = errors.New("setUserBalance not defined in the oracle ABI")
	ErrUnknownInput = errors.New("setUserBalance input cannot be mapped")
	ErrNoID         = errors.New("setUserBalance requires an id but the request has none")
	ErrBadAddress   = errors.New("invalid hex address")
	ErrNoTopics     = errors.New("log has no topics")
	ErrWrongTopic   = errors.New("log topic does not match the event")
	ErrReverted     = errors.New("transaction reverted")
)

// Backend is the chain client used by the oracle. *ethclient.Client implements it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Call contains the values written by setUserBalance. ID may be nil when the contract does not take one.
type Call struct {
	Balance *big.Int
	User    string
	ID      *big.Int
	Amount  *big.Int
}

// Oracle implements a connection to a balance oracle contract.
type Oracle struct {
	backend   Backend
	abi       abi.ABI
	address   common.Address
	caller    common.Address
	contract  *bind.BoundContract
	auth      *bind.TransactOpts
	waitMined bool
}

// LoadABI parses the ABI in file, or DefaultABI if file is empty.
func LoadABI(file string) (abi.ABI, error) {
	if file == "" {
		return abi.JSON(strings.NewReader(DefaultABI))
	}

	f, err := os.Open(file)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("oracle: cannot open abi file: %w", err)
	}
	defer f.Close()

	return abi.JSON(f)
}

// Dial connects to the node in conf, loads the ABI and the signing key and returns the Oracle.
func Dial(ctx context.Context, conf config.ServiceConfig) (*Oracle, error) {
	key, err := Key(conf)
	if err != nil {
		return nil, err
	}

	c, err := ethclient.DialContext(ctx, conf.Node)
	if err != nil {
		return nil, fmt.Errorf("oracle: cannot connect to %s: %w", conf.Node, err)
	}

	chainID := big.NewInt(conf.ChainID)
	if conf.ChainID == 0 {
		if chainID, err = c.ChainID(ctx); err != nil {
			c.Close()

			return nil, fmt.Errorf("oracle: cannot get chain id: %w", err)
		}
	}

	a, err := LoadABI(conf.ABIFile)
	if err != nil {
		c.Close()

		return nil, err
	}

	o, err := New(c, a, conf.OracleAddress, conf.CallerAddress, key, chainID)
	if err != nil {
		c.Close()

		return nil, err
	}

	o.waitMined = conf.WaitMined
	log.Printf("[oracle] Connected to %s chain:%s contract:%s signer:%s", conf.Node, chainID, o.address.Hex(),
		o.auth.From.Hex())

	return o, nil
}

// New returns an Oracle for the contract at address using backend. When caller is empty the signer address is used.
func New(backend Backend, a abi.ABI, address, caller string, key *ecdsa.PrivateKey, chainID *big.Int) (*Oracle,
	error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrBadAddress, address)
	}

	if _, ok := a.Methods[SetMethod]; !ok {
		return nil, ErrNoMethod
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("oracle: cannot create transactor: %w", err)
	}

	o := &Oracle{
		backend: backend,
		abi:     a,
		address: common.HexToAddress(address),
		caller:  auth.From,
		auth:    auth,
	}

	if caller != "" {
		if !common.IsHexAddress(caller) {
			return nil, fmt.Errorf("%w: %q", ErrBadAddress, caller)
		}

		o.caller = common.HexToAddress(caller)
	}

	o.contract = bind.NewBoundContract(o.address, a, backend, backend, backend)

	return o, nil
}

// Close ends the connection to the node.
func (o *Oracle) Close() {
	if o.backend != nil {
		o.backend.Close()
	}
}

// Address returns the contract address.
func (o *Oracle) Address() string {
	return o.address.Hex()
}

// Subscribe installs a log subscription for the event name. The subscription lives until it is unsubscribed or ctx
// is done.
func (o *Oracle) Subscribe(ctx context.Context, name string) (<-chan ethtypes.Log, event.Subscription, error) {
	if _, ok := o.abi.Events[name]; !ok {
		return nil, nil, fmt.Errorf("%w: %s", types.ErrUnknownEvent, name)
	}

	logs, sub, err := o.contract.WatchLogs(&bind.WatchOpts{Context: ctx}, name)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle: cannot subscribe to %s: %w", name, err)
	}

	return logs, sub, nil
}

// Unpack decodes the indexed and non-indexed fields of a log of the event name into a map keyed by input name.
func (o *Oracle) Unpack(name string, l ethtypes.Log) (map[string]interface{}, error) {
	ev, ok := o.abi.Events[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownEvent, name)
	}

	if len(l.Topics) == 0 {
		return nil, ErrNoTopics
	}

	if l.Topics[0] != ev.ID {
		return nil, fmt.Errorf("%w: %s", ErrWrongTopic, name)
	}

	out := make(map[string]interface{})
	if err := o.contract.UnpackLogIntoMap(out, name, l); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrBadValue, err)
	}

	return out, nil
}

// args maps the setUserBalance inputs, by name, to the values of c.
func (o *Oracle) args(c Call) ([]interface{}, error) {
	inputs := o.abi.Methods[SetMethod].Inputs
	args := make([]interface{}, 0, len(inputs))

	for _, in := range inputs {
		switch in.Name {
		case "userBalance", "balance":
			args = append(args, c.Balance)
		case "userAddress", "user", "address":
			if !common.IsHexAddress(c.User) {
				return nil, fmt.Errorf("%w: %q", ErrBadAddress, c.User)
			}

			args = append(args, common.HexToAddress(c.User))
		case "callerAddress", "caller":
			args = append(args, o.caller)
		case "id", "requestId":
			if c.ID == nil {
				return nil, ErrNoID
			}

			args = append(args, c.ID)
		case "amount", "value":
			args = append(args, c.Amount)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownInput, in.Name)
		}
	}

	return args, nil
}

// SetUserBalance sends the setUserBalance transaction and returns its hash. If the oracle was configured to wait
// for mining, it waits for the receipt and returns ErrReverted for failed transactions.
func (o *Oracle) SetUserBalance(ctx context.Context, c Call) (string, error) {
	args, err := o.args(c)
	if err != nil {
		return "", err
	}

	opts := *o.auth
	opts.Context = ctx

	tx, err := o.contract.Transact(&opts, SetMethod, args...)
	if err != nil {
		return "", fmt.Errorf("oracle: %s: %w", SetMethod, err)
	}

	hash := tx.Hash().Hex()

	if o.waitMined {
		r, err := bind.WaitMined(ctx, o.backend, tx)
		if err != nil {
			return hash, fmt.Errorf("oracle: waiting for %s: %w", hash, err)
		}

		if r.Status != ethtypes.ReceiptStatusSuccessful {
			return hash, fmt.Errorf("%w: %s", ErrReverted, hash)
		}
	}

	return hash, nil
}
