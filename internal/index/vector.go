package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/supporthub/copilot/internal/copiloterrors"
)

// VectorHit is one nearest-neighbor result: a passage id and its L2 distance
// to the query vector. Lower distance means more similar.
type VectorHit struct {
	PassageID string
	Distance  float64
}

// VectorIndex is a brute-force dense vector index. All vectors share one
// dimensionality fixed at construction. The index is populated via Upsert
// during a rebuild and must not be mutated after it is published to readers.
type VectorIndex struct {
	dimension int
	ids       []string
	position  map[string]int
	vectors   [][]float32
}

// NewVectorIndex creates an empty vector index for the given dimension.
func NewVectorIndex(dimension int) (*VectorIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("vector index dimension must be positive, got %d", dimension)
	}

	return &VectorIndex{
		dimension: dimension,
		position:  make(map[string]int),
	}, nil
}

// Dimension returns the fixed vector dimensionality of this index instance.
func (ix *VectorIndex) Dimension() int { return ix.dimension }

// Len returns the number of indexed vectors.
func (ix *VectorIndex) Len() int { return len(ix.ids) }

// Upsert inserts the vector for a passage id, replacing any existing entry.
func (ix *VectorIndex) Upsert(passageID string, vector []float32) error {
	if passageID == "" {
		return fmt.Errorf("passage id must not be empty")
	}

	if len(vector) != ix.dimension {
		return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(vector), ix.dimension)
	}

	if pos, ok := ix.position[passageID]; ok {
		ix.vectors[pos] = vector

		return nil
	}

	ix.position[passageID] = len(ix.ids)
	ix.ids = append(ix.ids, passageID)
	ix.vectors = append(ix.vectors, vector)

	return nil
}

// Search returns up to k nearest passages by L2 distance, ascending.
// Ties are broken by passage id ascending so results are deterministic.
// Returns IndexEmptyError when no vectors are indexed.
func (ix *VectorIndex) Search(queryVector []float32, k int) ([]VectorHit, error) {
	if ix.Len() == 0 {
		return nil, copiloterrors.NewIndexEmptyError("vector index is empty")
	}

	if len(queryVector) != ix.dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: got %d, want %d", len(queryVector), ix.dimension)
	}

	if k <= 0 {
		return []VectorHit{}, nil
	}

	hits := make([]VectorHit, 0, ix.Len())
	for i, id := range ix.ids {
		hits = append(hits, VectorHit{
			PassageID: id,
			Distance:  l2Distance(queryVector, ix.vectors[i]),
		})
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Distance != hits[b].Distance {
			return hits[a].Distance < hits[b].Distance
		}

		return hits[a].PassageID < hits[b].PassageID
	})

	if len(hits) > k {
		hits = hits[:k]
	}

	return hits, nil
}

// l2Distance computes the Euclidean distance between two equal-length vectors.
func l2Distance(a, b []float32) float64 {
	var sum float64

	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return math.Sqrt(sum)
}

// DistanceToSimilarity converts an L2 distance into a similarity in (0, 1]
// using 1/(1+distance). The transform is monotonic and must be used both when
// scoring candidates and when interpreting scores; mixing transforms across
// build and query time would silently break the similarity threshold.
func DistanceToSimilarity(distance float64) float64 {
	return 1 / (1 + distance)
}
