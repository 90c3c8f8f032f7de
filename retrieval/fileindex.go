package retrieval

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"
)

const (
	// DefaultWindow is the number of lines per indexed chunk.
	DefaultWindow = 40
	// MaxFileBytes skips files larger than this when indexing.
	MaxFileBytes = 256 * 1024

	termWeight = 0.7
	pathWeight = 0.3
)

var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "this": true,
	"that": true, "from": true, "into": true, "what": true, "how": true,
	"does": true, "are": true, "can": true, "you": true, "please": true,
	"file": true, "code": true, "make": true, "should": true, "why": true,
}

type chunk struct {
	path      string
	startLine int
	endLine   int
	content   string
	terms     map[string]bool
}

// FileIndex is a lexical index over the text files below a root
// directory. Files are split into fixed line windows; a chunk scores by
// the share of query terms it contains plus a fuzzy match of the query
// terms against its path.
type FileIndex struct {
	root   string
	window int
	logger *zap.Logger

	mu     sync.Mutex
	built  bool
	gen    uint64
	chunks []chunk
	paths  []string
}

// NewFileIndex creates an index rooted at root. The index is built on the
// first query.
func NewFileIndex(root string, logger *zap.Logger) *FileIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileIndex{
		root:   root,
		window: DefaultWindow,
		logger: logger.Named("retrieval"),
	}
}

// Build walks the root and indexes every readable text file. It replaces
// any previous index.
func (x *FileIndex) Build(ctx context.Context) error {
	var (
		chunks []chunk
		paths  []string
	)

	x.mu.Lock()
	gen := x.gen
	x.mu.Unlock()

	err := filepath.WalkDir(x.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			x.logger.Debug("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := d.Name()
		if d.IsDir() {
			if path != x.root && (skipDirs[name] || strings.HasPrefix(name, ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(name, ".") {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() == 0 || info.Size() > MaxFileBytes {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil || bytes.IndexByte(data, 0) >= 0 {
			return nil
		}

		rel, err := filepath.Rel(x.root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		fileChunks, err := splitChunks(rel, data, x.window)
		if err != nil {
			x.logger.Warn("partially indexed file", zap.String("path", rel), zap.Error(err))
		}
		paths = append(paths, rel)
		chunks = append(chunks, fileChunks...)
		return nil
	})
	if err != nil {
		return err
	}

	x.mu.Lock()
	x.chunks = chunks
	x.paths = paths
	// An Invalidate during the walk keeps the index dirty.
	x.built = x.gen == gen
	x.mu.Unlock()

	x.logger.Debug("index built",
		zap.String("root", x.root),
		zap.Int("files", len(paths)),
		zap.Int("chunks", len(chunks)))
	return nil
}

// Invalidate marks the index stale; the next query rebuilds it.
func (x *FileIndex) Invalidate() {
	x.mu.Lock()
	x.built = false
	x.gen++
	x.mu.Unlock()
}

// splitChunks returns the chunks of data. On a scan error it returns the
// chunks read so far with the error.
func splitChunks(path string, data []byte, window int) ([]chunk, error) {
	var (
		out   []chunk
		lines []string
		start = 1
	)

	flush := func(end int) {
		if len(lines) == 0 {
			return
		}
		content := strings.Join(lines, "\n")
		out = append(out, chunk{
			path:      path,
			startLine: start,
			endLine:   end,
			content:   content,
			terms:     termSet(content),
		})
		lines = nil
		start = end + 1
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), MaxFileBytes+1)
	n := 0
	for scanner.Scan() {
		n++
		lines = append(lines, scanner.Text())
		if len(lines) == window {
			flush(n)
		}
	}
	flush(n)
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("line %d: %w", n+1, err)
	}
	return out, nil
}

// FindRelevant returns the topK best chunks for query. Chunks that share
// nothing with the query are never returned.
func (x *FileIndex) FindRelevant(ctx context.Context, query string, topK int) ([]Snippet, error) {
	x.mu.Lock()
	built := x.built
	x.mu.Unlock()
	if !built {
		if err := x.Build(ctx); err != nil {
			return nil, err
		}
	}

	terms := queryTerms(query)
	if len(terms) == 0 || topK <= 0 {
		return nil, nil
	}

	x.mu.Lock()
	chunks := x.chunks
	paths := x.paths
	x.mu.Unlock()

	pathScores := x.pathScores(terms, paths)

	var results []Snippet
	for _, c := range chunks {
		hits := 0
		for _, t := range terms {
			if c.terms[t] {
				hits++
			}
		}
		score := termWeight*float64(hits)/float64(len(terms)) + pathWeight*pathScores[c.path]
		if score <= 0 {
			continue
		}
		if score > 1 {
			score = 1
		}
		results = append(results, Snippet{
			FilePath:  c.path,
			StartLine: c.startLine,
			EndLine:   c.endLine,
			Content:   c.content,
			Score:     score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// pathScores returns, per path, the share of terms that fuzzy-match it
// compactly.
func (x *FileIndex) pathScores(terms []string, paths []string) map[string]float64 {
	lowered := make([]string, len(paths))
	for i, p := range paths {
		lowered[i] = strings.ToLower(p)
	}

	counts := make(map[string]int)
	for _, t := range terms {
		for _, m := range fuzzy.Find(t, lowered) {
			if !compactMatch(m, len(t)) {
				continue
			}
			counts[paths[m.Index]]++
		}
	}

	scores := make(map[string]float64, len(counts))
	for p, n := range counts {
		scores[p] = float64(n) / float64(len(terms))
	}
	return scores
}

// compactMatch rejects matches whose characters are scattered across the
// whole path.
func compactMatch(m fuzzy.Match, termLen int) bool {
	if len(m.MatchedIndexes) == 0 {
		return false
	}
	first := m.MatchedIndexes[0]
	last := m.MatchedIndexes[len(m.MatchedIndexes)-1]
	return last-first+1 <= 2*termLen
}

func queryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, w := range tokenize(query) {
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

func termSet(content string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range tokenize(content) {
		set[w] = true
	}
	return set
}

// tokenize splits on anything that is not a letter or digit and also
// breaks camelCase identifiers, keeping the whole identifier too.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var out []string
	for _, f := range fields {
		lower := strings.ToLower(f)
		out = append(out, lower)
		parts := splitCamel(f)
		if len(parts) > 1 {
			for _, p := range parts {
				out = append(out, strings.ToLower(p))
			}
		}
	}
	return out
}

func splitCamel(s string) []string {
	var (
		parts []string
		start int
	)
	runes := []rune(s)
	for i := 1; i < len(runes); i++ {
		if unicode.IsUpper(runes[i]) && unicode.IsLower(runes[i-1]) {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	return append(parts, string(runes[start:]))
}
