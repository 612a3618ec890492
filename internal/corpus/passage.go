// Package corpus defines the knowledge-base passage model and the JSON corpus loader.
package corpus

import (
	"fmt"
	"strings"
	"time"
)

// Passage represents one retrievable unit of knowledge-base content.
// Passages are immutable once indexed; the corpus is replaced wholesale on rebuild.
type Passage struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Tags      []string  `json:"tags"`
	Source    string    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Text returns the rich content string used for embedding and keyword indexing.
// The same derivation must be applied at index build and query time, so both
// index families see identical passage text.
func (p Passage) Text() string {
	return fmt.Sprintf("Category: %s\nQuestion: %s\nAnswer: %s\nTags: %s",
		p.Category, p.Question, p.Answer, strings.Join(p.Tags, ", "))
}
