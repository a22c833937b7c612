package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const aggregatorABIJSON = `[
	{"inputs":[],"name":"latestRoundData","outputs":[
		{"internalType":"uint80","name":"roundId","type":"uint80"},
		{"internalType":"int256","name":"answer","type":"int256"},
		{"internalType":"uint256","name":"startedAt","type":"uint256"},
		{"internalType":"uint256","name":"updatedAt","type":"uint256"},
		{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],
	 "stateMutability":"view","type":"function"},
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],
	 "stateMutability":"view","type":"function"}
]`

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// ChainlinkOptions parameterise the on-chain price provider.
type ChainlinkOptions struct {
	RPCURL string
	// Feeds maps an instrument symbol to its aggregator contract address.
	Feeds   map[string]string
	Timeout time.Duration
}

// Chainlink reads prices from Chainlink aggregator contracts over JSON-RPC.
// It backs the watchlist when no HTTP market-data credentials are available.
type Chainlink struct {
	opts      ChainlinkOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex

	decimalsMux   sync.Mutex
	decimalsCache map[string]int32
}

// NewChainlink constructs the on-chain provider.
func NewChainlink(opts ChainlinkOptions, logger zerolog.Logger) *Chainlink {
	return &Chainlink{
		opts:          opts,
		logger:        logger.With().Str("component", "chainlink_provider").Logger(),
		decimalsCache: make(map[string]int32),
	}
}

// Name identifies the provider in persisted ticks.
func (c *Chainlink) Name() string { return "chainlink" }

// LatestPrice resolves the symbol's aggregator and reads latestRoundData.
func (c *Chainlink) LatestPrice(ctx context.Context, symbol string) (PricePoint, error) {
	if c.opts.RPCURL == "" {
		return PricePoint{}, errors.New("chainlink rpc url not configured")
	}
	feedAddr, ok := c.opts.Feeds[strings.ToUpper(symbol)]
	if !ok {
		return PricePoint{}, fmt.Errorf("no aggregator feed configured for %s", symbol)
	}

	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return PricePoint{}, err
	}

	addr := common.HexToAddress(feedAddr)

	scale, err := c.feedDecimals(ctx, client, addr)
	if err != nil {
		return PricePoint{}, err
	}

	payload, err := aggregatorABI.Pack("latestRoundData")
	if err != nil {
		return PricePoint{}, err
	}
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return PricePoint{}, err
	}
	outputs, err := aggregatorABI.Unpack("latestRoundData", res)
	if err != nil {
		return PricePoint{}, err
	}
	if len(outputs) != 5 {
		return PricePoint{}, errors.New("unexpected latestRoundData response")
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok {
		return PricePoint{}, errors.New("failed to decode latestRoundData answer")
	}
	if answer.Sign() <= 0 {
		return PricePoint{}, ErrPriceUnavailable
	}

	updatedAt, ok := outputs[3].(*big.Int)
	if !ok {
		return PricePoint{}, errors.New("failed to decode latestRoundData updatedAt")
	}

	price := decimal.NewFromBigInt(answer, -scale)

	observed := time.Now().UTC()
	if updatedAt.IsInt64() && updatedAt.Int64() > 0 {
		observed = time.Unix(updatedAt.Int64(), 0).UTC()
	}

	return PricePoint{
		Instrument: strings.ToUpper(symbol),
		Price:      price.InexactFloat64(),
		ObservedAt: observed,
		Source:     c.Name(),
	}, nil
}

func (c *Chainlink) feedDecimals(ctx context.Context, client *ethclient.Client, addr common.Address) (int32, error) {
	c.decimalsMux.Lock()
	cached, ok := c.decimalsCache[addr.Hex()]
	c.decimalsMux.Unlock()
	if ok {
		return cached, nil
	}

	payload, err := aggregatorABI.Pack("decimals")
	if err != nil {
		return 0, err
	}
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return 0, err
	}
	outputs, err := aggregatorABI.Unpack("decimals", res)
	if err != nil {
		return 0, err
	}
	if len(outputs) != 1 {
		return 0, errors.New("unexpected decimals response")
	}
	value, ok := outputs[0].(uint8)
	if !ok {
		return 0, errors.New("failed to decode decimals output")
	}

	c.decimalsMux.Lock()
	c.decimalsCache[addr.Hex()] = int32(value)
	c.decimalsMux.Unlock()
	return int32(value), nil
}

func (c *Chainlink) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	client, err := ethclient.DialContext(ctx, c.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

var _ PriceProvider = (*Chainlink)(nil)
