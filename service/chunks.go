package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/vocdoni/davinci-pool/log"
	"github.com/vocdoni/davinci-pool/nullifier"
	"golang.org/x/sync/errgroup"
)

// chunkProvisionWorkers bounds the chunks created concurrently.
const chunkProvisionWorkers = 8

// ProvisionChunks creates the nullifier chunks 0..n-1 concurrently, skipping
// those that already exist, and returns how many were created. It stops at
// the first failure or when ctx is done.
func (ps *PoolService) ProvisionChunks(ctx context.Context, n uint64) (int, error) {
	var created atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(chunkProvisionWorkers)
	for i := range n {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := ps.Nullifiers.CreateChunk(i)
			if errors.Is(err, nullifier.ErrChunkExists) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to provision nullifier chunk %d: %w", i, err)
			}
			created.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(created.Load()), err
	}
	if err := ctx.Err(); err != nil {
		return int(created.Load()), err
	}
	if created.Load() > 0 {
		log.Infow("nullifier chunks provisioned", "created", created.Load(), "requested", n)
	}
	return int(created.Load()), nil
}
