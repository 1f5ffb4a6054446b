// Package embedder implements a dependency-free text embedder: TF-IDF
// vectors once a corpus has been trained, falling back to a
// locality-sensitive hash projection before training. No vector
// database or external embedding service is involved — the abstract
// Embedder interface is the entire contract the rest of the kernel
// depends on.
package embedder

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/splk-dev/splk/internal/worker"
)

// batchEmbedConcurrencyThreshold is the smallest batch BatchEmbed will
// fan out across worker.Pool; below it the per-goroutine dispatch
// overhead isn't worth it.
const batchEmbedConcurrencyThreshold = 8

// DefaultDimension is the fixed output dimension used when a caller
// does not specify one.
const DefaultDimension = 128

// DefaultMaxCacheSize bounds the embedding cache before eviction kicks in.
const DefaultMaxCacheSize = 10000

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "have": true,
	"has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "must": true, "shall": true, "can": true, "to": true,
	"of": true, "in": true, "for": true, "on": true, "with": true, "at": true,
	"by": true, "from": true, "as": true, "or": true, "and": true, "but": true,
	"if": true, "then": true, "so": true, "than": true, "that": true,
	"this": true, "these": true, "those": true, "it": true, "its": true,
}

// Embedder turns text into fixed-dimension unit vectors and compares
// them by cosine similarity. It is pure and deterministic for a fixed
// training corpus: identical inputs always produce identical output.
type Embedder struct {
	mu           sync.RWMutex
	dimension    int
	maxCacheSize int

	df         map[string]int
	totalDocs  int
	vocabulary map[string]int
	trained    bool

	cache map[string][]float64
}

// Option configures an Embedder at construction.
type Option func(*Embedder)

// WithDimension overrides the output vector dimension.
func WithDimension(d int) Option {
	return func(e *Embedder) { e.dimension = d }
}

// WithMaxCacheSize overrides the embedding cache's eviction threshold.
func WithMaxCacheSize(n int) Option {
	return func(e *Embedder) { e.maxCacheSize = n }
}

// New constructs an untrained Embedder (hash-fallback mode until Train
// is called).
func New(opts ...Option) *Embedder {
	e := &Embedder{
		dimension:    DefaultDimension,
		maxCacheSize: DefaultMaxCacheSize,
		df:           make(map[string]int),
		vocabulary:   make(map[string]int),
		cache:        make(map[string][]float64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// tokenize lowercases, splits on non-alphanumerics, drops stopwords and
// tokens of length <= 2.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	matches := tokenPattern.FindAllString(lower, -1)
	tokens := make([]string, 0, len(matches))
	for _, tok := range matches {
		if len(tok) > 2 && !stopwords[tok] {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// computeTF returns log-normalized term frequencies for a token list.
func computeTF(tokens []string) map[string]float64 {
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	total := float64(len(tokens))
	if total == 0 {
		total = 1
	}
	tf := make(map[string]float64, len(counts))
	for term, count := range counts {
		tf[term] = (1 + math.Log(float64(count))) / total
	}
	return tf
}

// Train builds the vocabulary and document-frequency statistics TF-IDF
// embedding needs. Calling Train again replaces the prior statistics;
// subsequent Embed calls use TF-IDF mode.
func (e *Embedder) Train(documents []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.df = make(map[string]int)
	e.totalDocs = len(documents)
	e.vocabulary = make(map[string]int)

	for _, doc := range documents {
		seen := make(map[string]bool)
		for _, tok := range tokenize(doc) {
			seen[tok] = true
		}
		for tok := range seen {
			e.df[tok]++
			if _, ok := e.vocabulary[tok]; !ok {
				e.vocabulary[tok] = len(e.vocabulary)
			}
		}
	}
	e.trained = true
	e.cache = make(map[string][]float64)
}

func (e *Embedder) idf(term string) float64 {
	df := e.df[term]
	if df == 0 {
		return 0
	}
	return math.Log(float64(e.totalDocs) / float64(df))
}

// hashEmbed produces a locality-sensitive projection seeded from each
// token's MD5 digest, used before any corpus has been trained.
func (e *Embedder) hashEmbed(text string) []float64 {
	tokens := tokenize(text)
	vec := make([]float64, e.dimension)
	if len(tokens) == 0 {
		return vec
	}

	for _, tok := range tokens {
		sum := md5.Sum([]byte(tok))
		digest := hex.EncodeToString(sum[:])
		limit := 16
		if e.dimension < limit {
			limit = e.dimension
		}
		for i := 0; i < limit; i++ {
			hexByte := digest[i*2 : i*2+2]
			var val int
			for _, c := range hexByte {
				val = val*16 + hexDigit(c)
			}
			projection := float64(val)/127.5 - 1.0
			vec[i%e.dimension] += projection
		}
	}
	return l2Normalize(vec)
}

func hexDigit(c rune) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return 0
	}
}

// tfidfEmbed projects the document's TF-IDF vector into the fixed
// dimension via vocab_index % D, falling back to a hash for
// out-of-vocabulary terms so unseen words still contribute.
func (e *Embedder) tfidfEmbed(text string) []float64 {
	tokens := tokenize(text)
	vec := make([]float64, e.dimension)
	if len(tokens) == 0 {
		return vec
	}

	tf := computeTF(tokens)
	for term, termTF := range tf {
		tfidf := termTF * e.idf(term)
		var idx int
		if vocabIdx, ok := e.vocabulary[term]; ok {
			idx = vocabIdx % e.dimension
		} else {
			idx = int(fnv32(term)) % e.dimension
			if idx < 0 {
				idx += e.dimension
			}
		}
		vec[idx] += tfidf
	}
	return l2Normalize(vec)
}

// fnv32 is a cheap, deterministic string hash for out-of-vocabulary
// terms encountered at embed time (not during Train).
func fnv32(s string) uint32 {
	const prime = 16777619
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

func l2Normalize(vec []float64) []float64 {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		magnitude = 1
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = v / magnitude
	}
	return out
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// Embed returns a unit vector for text: the zero vector for empty
// input, TF-IDF once Train has been called, locality-sensitive hash
// projection otherwise. Results are cached by a hash of the input text;
// the cache evicts half of its entries (oldest-inserted-first is not
// tracked, so the eviction is simply "some half") once it reaches
// maxCacheSize.
func (e *Embedder) Embed(text string) []float64 {
	key := cacheKey(text)

	e.mu.RLock()
	if cached, ok := e.cache[key]; ok {
		e.mu.RUnlock()
		return cached
	}
	trained := e.trained && e.totalDocs > 0
	e.mu.RUnlock()

	var vec []float64
	if trained {
		e.mu.RLock()
		vec = e.tfidfEmbed(text)
		e.mu.RUnlock()
	} else {
		e.mu.RLock()
		vec = e.hashEmbed(text)
		e.mu.RUnlock()
	}

	e.mu.Lock()
	if len(e.cache) >= e.maxCacheSize {
		evictHalf(e.cache)
	}
	e.cache[key] = vec
	e.mu.Unlock()

	return vec
}

// evictHalf drops roughly half of a cache's entries at once, so
// eviction cost is amortized instead of paid on every insert.
func evictHalf(cache map[string][]float64) {
	keys := make([]string, 0, len(cache))
	for k := range cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys[:len(keys)/2] {
		delete(cache, k)
	}
}

// Cosine computes cosine similarity between two vectors, in [-1, 1].
// Vectors of mismatched length, or either zero vector, yield 0.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// BatchEmbed embeds each input text, preserving order. Small batches
// run inline; larger ones fan out across worker.Pool since Embed's
// TF-IDF/hash computation is CPU-bound and each text is independent
// (Embed's own locking makes concurrent calls safe).
func (e *Embedder) BatchEmbed(texts []string) [][]float64 {
	if len(texts) < batchEmbedConcurrencyThreshold {
		out := make([][]float64, len(texts))
		for i, t := range texts {
			out[i] = e.Embed(t)
		}
		return out
	}

	pool := worker.NewPool[[]float64](0)
	results := pool.Process(texts, func(text string) ([]float64, error) {
		return e.Embed(text), nil
	})

	out := make([][]float64, len(texts))
	for _, r := range results {
		out[r.Index] = r.Value
	}
	return out
}

// Dimension returns the embedder's configured output dimension.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Trained reports whether Train has been called with a non-empty corpus.
func (e *Embedder) Trained() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trained && e.totalDocs > 0
}
