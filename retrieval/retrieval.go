// Package retrieval finds code snippets relevant to a query.
package retrieval

import "context"

// Snippet is a region of a file that matched a query. Score is in [0,1],
// higher is more relevant.
type Snippet struct {
	FilePath  string
	StartLine int
	EndLine   int
	Content   string
	Score     float64
}

// Retriever returns up to topK snippets ordered by descending score.
type Retriever interface {
	FindRelevant(ctx context.Context, query string, topK int) ([]Snippet, error)
}

// Invalidator is implemented by retrievers that cache file contents and
// must be told when files change.
type Invalidator interface {
	Invalidate()
}

// Nop never finds anything.
type Nop struct{}

func (Nop) FindRelevant(ctx context.Context, query string, topK int) ([]Snippet, error) {
	return nil, nil
}
