package embedder

import (
	"fmt"
	"math"
	"testing"
)

func TestEmbed_EmptyInputIsZeroVector(t *testing.T) {
	e := New()
	vec := e.Embed("")
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("Embed(\"\")[%d] = %v, want 0", i, v)
		}
	}
}

func TestEmbed_Deterministic(t *testing.T) {
	e := New()
	a := e.Embed("I prefer async/await in Python")
	b := e.Embed("I prefer async/await in Python")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Embed not deterministic at index %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestEmbed_UnitNorm(t *testing.T) {
	e := New()
	vec := e.Embed("some reasonably long sentence about golang channels and goroutines")
	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}
	norm := math.Sqrt(sumSquares)
	if math.Abs(norm-1.0) > 1e-9 {
		t.Errorf("||Embed(text)|| = %v, want 1.0", norm)
	}
}

func TestCosine_IdenticalVectorsAreOne(t *testing.T) {
	e := New()
	v := e.Embed("prefer typescript over javascript")
	if got := Cosine(v, v); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Cosine(v, v) = %v, want 1.0", got)
	}
}

func TestCosine_UnrelatedTextsAreDissimilar(t *testing.T) {
	e := New()
	a := e.Embed("I prefer async await in python for backend services")
	b := e.Embed("I hate cilantro on my tacos")
	if got := Cosine(a, b); got > 0.5 {
		t.Errorf("Cosine(unrelated) = %v, want well below 0.5", got)
	}
}

func TestTrain_SwitchesToTFIDFMode(t *testing.T) {
	e := New()
	if e.Trained() {
		t.Fatal("Trained() = true before Train was called")
	}
	e.Train([]string{
		"I prefer python for backend development",
		"I prefer javascript for frontend development",
	})
	if !e.Trained() {
		t.Fatal("Trained() = false after Train was called")
	}
	// Same similar-topic texts should embed closer together than
	// clearly different ones, under TF-IDF as under hash mode.
	python := e.Embed("python backend development")
	js := e.Embed("javascript frontend development")
	unrelated := e.Embed("zzz qqq nonsense words")
	if Cosine(python, js) < Cosine(python, unrelated) {
		t.Error("TF-IDF mode did not separate related from unrelated text")
	}
}

func TestEmbed_CacheEvictsAtMaxSize(t *testing.T) {
	e := New(WithMaxCacheSize(4))
	for i := 0; i < 10; i++ {
		e.Embed(string(rune('a' + i)))
	}
	e.mu.RLock()
	size := len(e.cache)
	e.mu.RUnlock()
	if size > 4 {
		t.Errorf("cache size = %d, want <= maxCacheSize (eviction should have triggered)", size)
	}
}

func TestBatchEmbed_PreservesOrder(t *testing.T) {
	e := New()
	texts := []string{"alpha beta gamma", "delta epsilon zeta"}
	single0 := e.Embed(texts[0])
	single1 := e.Embed(texts[1])
	batch := e.BatchEmbed(texts)
	if Cosine(batch[0], single0) < 0.999999 || Cosine(batch[1], single1) < 0.999999 {
		t.Error("BatchEmbed results do not match individual Embed calls in order")
	}
}

func TestBatchEmbed_PreservesOrderAboveConcurrencyThreshold(t *testing.T) {
	e := New()
	texts := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		texts = append(texts, fmt.Sprintf("distinct document number %d about topic %d", i, i*7))
	}

	batch := e.BatchEmbed(texts)
	if len(batch) != len(texts) {
		t.Fatalf("len(batch) = %d, want %d", len(batch), len(texts))
	}
	for i, text := range texts {
		want := e.Embed(text)
		if Cosine(batch[i], want) < 0.999999 {
			t.Errorf("batch[%d] does not match Embed(%q) (fanned-out batch lost order)", i, text)
		}
	}
}
