package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/okian/holdsnap/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Default Ethereum source configuration constants.
const (
	defaultTokenDecimals = 18
	defaultCallTimeout   = 30 * time.Second
)

var transferEventSignature = gethcrypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// EVMClient defines the subset of the Ethereum RPC used by EthereumSource.
type EVMClient interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// DialEVMClient initialises an EVM RPC client for the provided endpoint.
func DialEVMClient(ctx context.Context, endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, ErrEndpoint
	}
	return ethclient.DialContext(ctx, trimmed)
}

// EthereumOption applies a configuration option to the EthereumSource.
type EthereumOption func(*EthereumSource)

// WithTokenDecimals sets how many decimals the token uses on chain.
func WithTokenDecimals(decimals int32) EthereumOption {
	return func(s *EthereumSource) {
		if decimals >= 0 {
			s.decimals = decimals
		}
	}
}

// WithCallTimeout bounds every RPC call.
func WithCallTimeout(d time.Duration) EthereumOption {
	return func(s *EthereumSource) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// EthereumSource reads ERC-20 Transfer logs of one token contract.
type EthereumSource struct {
	client   EVMClient
	token    common.Address
	decimals int32
	timeout  time.Duration
}

// NewEthereumSource constructs a source for the token at tokenAddress.
func NewEthereumSource(client EVMClient, tokenAddress string, opts ...EthereumOption) (*EthereumSource, error) {
	if !common.IsHexAddress(tokenAddress) {
		return nil, fmt.Errorf("%w: token contract %q", ErrInvalidAddress, tokenAddress)
	}
	s := &EthereumSource{
		client:   client,
		token:    common.HexToAddress(tokenAddress),
		decimals: defaultTokenDecimals,
		timeout:  defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TransferEvents implements Source.
func (s *EthereumSource) TransferEvents(ctx context.Context, holder string, dir model.Direction, from, to uint64) ([]model.TransferEvent, error) {
	if !common.IsHexAddress(holder) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, holder)
	}
	if from > to {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidRange, from, to)
	}
	holderTopic := common.BytesToHash(common.HexToAddress(holder).Bytes())

	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{s.token},
	}
	switch dir {
	case model.Out:
		q.Topics = [][]common.Hash{{transferEventSignature}, {holderTopic}}
	case model.In:
		q.Topics = [][]common.Hash{{transferEventSignature}, nil, {holderTopic}}
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrBadDirection, dir)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	logs, err := s.client.FilterLogs(callCtx, q)
	if err != nil {
		return nil, fmt.Errorf("filter %s transfers of %s: %w", dir, holder, err)
	}

	events := make([]model.TransferEvent, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed || lg.Address != s.token {
			continue
		}
		if len(lg.Topics) < 3 || lg.Topics[0] != transferEventSignature {
			continue
		}
		value := new(big.Int).SetBytes(lg.Data)
		events = append(events, model.TransferEvent{
			BlockNumber: lg.BlockNumber,
			Direction:   dir,
			Value:       decimal.NewFromBigInt(value, -s.decimals),
			TxHash:      lg.TxHash.Hex(),
			LogIndex:    lg.Index,
		})
	}
	return events, nil
}

// HeadBlock implements Source.
func (s *EthereumSource) HeadBlock(ctx context.Context) (uint64, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.client.BlockNumber(callCtx)
	if err != nil {
		return 0, fmt.Errorf("fetch head: %w", err)
	}
	return n, nil
}
