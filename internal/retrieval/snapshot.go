package retrieval

import (
	"time"

	"github.com/supporthub/copilot/internal/corpus"
	"github.com/supporthub/copilot/internal/index"
)

// Snapshot is one immutable generation of the retrieval state: both indexes
// plus the passages they were built from. Queries acquire a snapshot once at
// query start and use it for their whole lifetime; a rebuild publishes a new
// Snapshot without touching any existing one.
type Snapshot struct {
	Vector   *index.VectorIndex
	Keyword  *index.KeywordIndex
	Passages map[string]corpus.Passage
	BuiltAt  time.Time
}

// Len returns the number of passages in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}

	return len(s.Passages)
}
