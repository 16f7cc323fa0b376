package simcache

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/milk9111/motionsim/physics"
)

type blob struct {
	CompositionID string           `json:"composition_id"`
	Start         int              `json:"start"`
	End           int              `json:"end"`
	Generation    string           `json:"generation"`
	States        []*physics.State `json:"states"`
}

// BlobKey identifies a cached range of a composition.
func BlobKey(compositionID string, start, end int) uint64 {
	d := xxhash.New()
	fmt.Fprintf(d, "%s\x00%d\x00%d", compositionID, start, end)
	return d.Sum64()
}

// Blob encodes the cached range for the caller to persist. The content is
// opaque; only the key is meant to be compared.
func (c *Cache) Blob(compositionID string) (uint64, []byte, error) {
	c.mu.Lock()
	b := blob{
		CompositionID: compositionID,
		Start:         c.cacheStartFrame,
		End:           c.cacheEndFrame,
		Generation:    c.generation.String(),
		States:        make([]*physics.State, 0, c.cacheEndFrame-c.cacheStartFrame+1),
	}
	for f := c.cacheStartFrame; f <= c.cacheEndFrame; f++ {
		b.States = append(b.States, c.cached[f])
	}
	c.mu.Unlock()

	data, err := json.Marshal(b)
	if err != nil {
		return 0, nil, fmt.Errorf("simcache: encode %s: %w", compositionID, err)
	}
	return BlobKey(compositionID, b.Start, b.End), data, nil
}
