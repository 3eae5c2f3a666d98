package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/okian/holdsnap/internal/domain/model"
	"github.com/okian/holdsnap/pkg/logger"
	"github.com/shopspring/decimal"
)

// contributionsABI covers the read-only getters of the crowdsale
// Contributions contract.
const contributionsABI = `[
	{"constant":true,"inputs":[],"name":"getTokenAddressesLength","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"","type":"uint256"}],"name":"tokenAddresses","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"","type":"address"}],"name":"tokenBalances","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// ContractCaller executes read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ContributionsReader lists every token buyer recorded by a Contributions
// contract together with the amount of tokens it bought.
type ContributionsReader struct {
	caller   ContractCaller
	contract common.Address
	abi      abi.ABI
	decimals int32
	block    *big.Int
	logger   logger.Logger
}

// NewContributionsReader builds a reader for the contract at address.
// A nil block reads the latest state.
func NewContributionsReader(caller ContractCaller, address string, decimals int32, block *big.Int, l logger.Logger) (*ContributionsReader, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: contributions contract %q", ErrInvalidAddress, address)
	}
	parsed, err := abi.JSON(strings.NewReader(contributionsABI))
	if err != nil {
		return nil, fmt.Errorf("parse contributions abi: %w", err)
	}
	if l == nil {
		l = logger.Nop()
	}
	return &ContributionsReader{
		caller:   caller,
		contract: common.HexToAddress(address),
		abi:      parsed,
		decimals: decimals,
		block:    block,
		logger:   l,
	}, nil
}

// Contributors returns the holder list in contract index order.
func (r *ContributionsReader) Contributors(ctx context.Context) ([]model.Contributor, error) {
	out, err := r.call(ctx, "getTokenAddressesLength")
	if err != nil {
		return nil, err
	}
	length, ok := out[0].(*big.Int)
	if !ok || !length.IsInt64() {
		return nil, fmt.Errorf("%w: getTokenAddressesLength returned %v", ErrContractCall, out[0])
	}

	// The slice grows with the calls that succeed; length is not trusted
	// as a capacity.
	n := length.Int64()
	holders := []model.Contributor{}
	for i := int64(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := r.call(ctx, "tokenAddresses", big.NewInt(i))
		if err != nil {
			return nil, err
		}
		addr, ok := out[0].(common.Address)
		if !ok {
			return nil, fmt.Errorf("%w: tokenAddresses(%d) returned %v", ErrContractCall, i, out[0])
		}

		out, err = r.call(ctx, "tokenBalances", addr)
		if err != nil {
			return nil, err
		}
		bal, ok := out[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("%w: tokenBalances(%s) returned %v", ErrContractCall, addr.Hex(), out[0])
		}

		c := model.NewContributor(addr.Hex(), decimal.NewFromBigInt(bal, -r.decimals))
		holders = append(holders, c)
		r.logger.Info(ctx, "contributor",
			logger.Int("id", int(i)),
			logger.String("address", c.Address),
			logger.Stringer("amount", c.InitialAmount),
		)
	}
	return holders, nil
}

func (r *ContributionsReader) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, r.block)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrContractCall, method, err)
	}
	out, err := r.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s returned nothing", ErrContractCall, method)
	}
	return out, nil
}
