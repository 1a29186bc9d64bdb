// Package dedup rejects same-day duplicates by exact hash, then by embedding similarity.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"NewsRelay/internal/clock"
	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
	"NewsRelay/internal/vector"
)

const (
	DefaultThreshold     = 0.92
	DefaultMinTextLength = 20
)

// Reason explains a rejection.
type Reason string

const (
	ReasonExactHash  Reason = "exact-hash"
	ReasonSimilarity Reason = "similarity"
)

// Candidate is one incoming article. Vector may be nil; the engine then embeds it.
type Candidate struct {
	Title  string
	Body   string
	URL    string
	Vector []float32
}

// Verdict is the outcome of Check. On accept, Hash and Vector are what the caller stores.
type Verdict struct {
	Accepted   bool
	Reason     Reason
	MatchedID  int64
	Similarity float64
	Hash       string
	Vector     []float32
}

// EngineDeps wires the dedup engine.
type EngineDeps struct {
	Window        ports.DedupWindow
	Embedder      ports.Embedder
	Threshold     float64
	MinTextLength int
	Location      *time.Location
	Now           func() time.Time
	Logger        *slog.Logger
}

// Engine checks candidates against the instance's current calendar day.
type Engine struct {
	window    ports.DedupWindow
	embedder  ports.Embedder
	threshold float64
	minText   int
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

// NewEngine applies defaults for zero-valued settings.
func NewEngine(deps EngineDeps) *Engine {
	e := &Engine{
		window:    deps.Window,
		embedder:  deps.Embedder,
		threshold: deps.Threshold,
		minText:   deps.MinTextLength,
		loc:       deps.Location,
		now:       deps.Now,
		logger:    deps.Logger,
	}
	if e.threshold <= 0 {
		e.threshold = DefaultThreshold
	}
	if e.minText <= 0 {
		e.minText = DefaultMinTextLength
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "dedup")
	return e
}

// WithWindow returns a copy of the engine reading from w. Dry runs use it to see their own
// unsaved accepts.
func (e *Engine) WithWindow(w ports.DedupWindow) *Engine {
	cp := *e
	cp.window = w
	return &cp
}

// WithEmbedder returns a copy of the engine that embeds through emb.
func (e *Engine) WithEmbedder(emb ports.Embedder) *Engine {
	cp := *e
	cp.embedder = emb
	return &cp
}

// Window returns the window the engine reads from.
func (e *Engine) Window() ports.DedupWindow {
	return e.window
}

// Threshold returns the configured similarity threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Today returns the window key for the current instant.
func (e *Engine) Today() string {
	return clock.Day(e.now(), e.loc)
}

// Check runs the hash stage and then the similarity stage.
func (e *Engine) Check(ctx context.Context, instance string, c Candidate) (Verdict, error) {
	normalized := Normalize(c.Title + " " + c.Body)

	if runeLen(normalized) < e.minText {
		return Verdict{Accepted: true, Hash: shortTextHash(normalized, c.URL), Vector: c.Vector}, nil
	}

	day := e.Today()
	hash := Hash(c.Title, c.Body)

	existing, err := e.window.FindByHash(ctx, instance, day, hash)
	if err != nil {
		return Verdict{}, fmt.Errorf("dedup hash lookup: %w", err)
	}
	if existing != nil {
		return Verdict{Reason: ReasonExactHash, MatchedID: existing.ID, Similarity: 1, Hash: hash}, nil
	}

	vec := c.Vector
	if len(vec) == 0 && e.embedder != nil {
		vec = e.embed(ctx, c.Title+" "+c.Body)
	}
	if len(vec) == 0 {
		return Verdict{Accepted: true, Hash: hash}, nil
	}

	window, err := e.window.WindowVectors(ctx, instance, day)
	if err != nil {
		return Verdict{}, fmt.Errorf("dedup window: %w", err)
	}

	var (
		best    float64
		matched int64
	)
	for _, other := range window {
		if sim := vector.Cosine(vec, other.Vector); sim > best || matched == 0 {
			best, matched = sim, other.ID
		}
	}

	if matched != 0 && best >= e.threshold {
		e.logger.Debug("similar article rejected", "instance", instance, "matched_id", matched, "similarity", best)
		return Verdict{Reason: ReasonSimilarity, MatchedID: matched, Similarity: best, Hash: hash}, nil
	}
	return Verdict{Accepted: true, Hash: hash, Vector: vec, Similarity: best}, nil
}

func (e *Engine) embed(ctx context.Context, text string) []float32 {
	vectors, outcome, err := e.embedder.Embed(ctx, []string{text})
	if err != nil || outcome != domain.OutcomeSuccess || len(vectors) != 1 {
		e.logger.Warn("embedding unavailable, hash check only", "outcome", outcome.String(), "error", err)
		return nil
	}
	return vectors[0]
}

// shortTextHash keys near-empty entries by URL as well so they never collide with each other.
func shortTextHash(normalized, url string) string {
	sum := sha256.Sum256([]byte("short\n" + normalized + "\n" + url))
	return hex.EncodeToString(sum[:])
}
