package ingest

import (
	"context"

	"github.com/LetzteFee/1brc/pkg/station"
)

// RunDistributor exposes the pool loop so tests can feed prepared chunks.
func RunDistributor(ctx context.Context, c *Coordinator, dist Distributor) (station.Table, error) {
	table, _, _, err := c.run(ctx, dist)

	return table, err
}
