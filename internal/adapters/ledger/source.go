// Package ledger fetches transfer history for token holders.
package ledger

import (
	"context"

	"github.com/okian/holdsnap/internal/domain/model"
)

// Source is the ledger the airdrop engine reads from.
type Source interface {
	// TransferEvents returns the transfers of the tracked token in which
	// holder is the sender (dir == model.Out) or the receiver (dir == model.In),
	// for blocks in [from, to].
	TransferEvents(ctx context.Context, holder string, dir model.Direction, from, to uint64) ([]model.TransferEvent, error)

	// HeadBlock returns the current chain height.
	HeadBlock(ctx context.Context) (uint64, error)
}
