// Package classify assigns a category and score to article texts.
// Anchor similarity is the primary path; regex hit counts are the offline fallback.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
	"NewsRelay/internal/provider"
	"NewsRelay/internal/vector"
)

const (
	MethodEmbedding = "embedding"
	MethodRegex     = "regex"

	// NoiseScore keeps noise below any real candidate.
	NoiseScore = -50.0

	DefaultAnchorFloor = 0.15
)

// Result is the classification of one text.
type Result struct {
	Category domain.Category
	Score    float64
	Method   string
	Vector   []float32
}

// ClassifierDeps wires the classifier.
type ClassifierDeps struct {
	Specs       []domain.CategorySpec
	Embedders   []ports.Embedder
	AnchorFloor float64
	Logger      *slog.Logger
}

type compiled struct {
	spec     domain.CategorySpec
	patterns []*regexp.Regexp
}

// Classifier is safe for concurrent use.
type Classifier struct {
	cats      []compiled
	weights   map[domain.Category]float64
	embedders map[string]ports.Embedder
	order     []string
	floor     float64
	logger    *slog.Logger
}

// NewClassifier compiles every category pattern case-insensitively.
func NewClassifier(deps ClassifierDeps) (*Classifier, error) {
	c := &Classifier{
		weights:   make(map[domain.Category]float64, len(deps.Specs)),
		embedders: make(map[string]ports.Embedder, len(deps.Embedders)),
		floor:     deps.AnchorFloor,
		logger:    deps.Logger,
	}
	if c.floor == 0 {
		c.floor = DefaultAnchorFloor
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "classify")

	for _, spec := range deps.Specs {
		entry := compiled{spec: spec}
		for _, p := range spec.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("category %s pattern %q: %w", spec.Name, p, err)
			}
			entry.patterns = append(entry.patterns, re)
		}
		c.cats = append(c.cats, entry)
		c.weights[spec.Name] = spec.Weight
	}

	for _, e := range deps.Embedders {
		c.embedders[e.Name()] = e
		c.order = append(c.order, e.Name())
	}
	return c, nil
}

// ClassifyAll embeds anchors and texts in one call through the registry so both share a
// model. Without vectors every text goes through the regex fallback.
func (c *Classifier) ClassifyAll(ctx context.Context, reg *provider.Registry, texts []string) ([]Result, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	anchors, vectors, err := c.embed(ctx, reg, texts)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(texts))
	for i, text := range texts {
		if vectors == nil {
			results[i] = c.ByRegex(text)
			continue
		}
		results[i] = c.byAnchors(text, vectors[i], anchors)
	}
	return results, nil
}

func (c *Classifier) embed(ctx context.Context, reg *provider.Registry, texts []string) ([][]float32, [][]float32, error) {
	if reg == nil || len(c.order) == 0 {
		return nil, nil, nil
	}

	inputs := make([]string, 0, len(c.cats)+len(texts))
	for _, cat := range c.cats {
		inputs = append(inputs, cat.spec.Description)
	}
	inputs = append(inputs, texts...)

	all, name, err := provider.Call(ctx, reg, provider.Classification, c.order,
		func(ctx context.Context, name string) provider.Attempt[[][]float32] {
			vecs, outcome, err := c.embedders[name].Embed(ctx, inputs)
			if outcome == domain.OutcomeSuccess && len(vecs) != len(inputs) {
				return provider.Attempt[[][]float32]{Outcome: domain.OutcomeFailure,
					Err: fmt.Errorf("got %d vectors for %d inputs", len(vecs), len(inputs))}
			}
			return provider.Attempt[[][]float32]{Value: vecs, Outcome: outcome, Err: err}
		})
	if err != nil {
		if domain.IsDurability(err) {
			return nil, nil, err
		}
		if errors.Is(err, domain.ErrProviderFailed) || errors.Is(err, domain.ErrAllProvidersBlocked) {
			c.logger.Warn("embedding unavailable, using regex fallback", "error", err)
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("embed texts: %w", err)
	}

	c.logger.Debug("texts embedded", "provider", name, "count", len(texts))
	return all[:len(c.cats)], all[len(c.cats):], nil
}

func (c *Classifier) byAnchors(text string, vec []float32, anchors [][]float32) Result {
	best, bestSim := domain.CategoryGeneral, math.Inf(-1)
	for i, cat := range c.cats {
		if sim := vector.Cosine(vec, anchors[i]); sim > bestSim {
			best, bestSim = cat.spec.Name, sim
		}
	}

	res := Result{Category: best, Method: MethodEmbedding, Vector: vec}
	switch {
	case best == domain.CategoryNoise, bestSim < c.floor, c.noisy(text):
		res.Category = domain.CategoryNoise
		res.Score = NoiseScore
	default:
		res.Score = round2(bestSim*10 + c.weights[best])
	}
	return res
}

// ByRegex scores text by pattern hits. No hits yields GENERAL.
func (c *Classifier) ByRegex(text string) Result {
	best, hits := domain.CategoryGeneral, 0
	for _, cat := range c.cats {
		n := 0
		for _, re := range cat.patterns {
			if re.MatchString(text) {
				n++
			}
		}
		if n > hits {
			best, hits = cat.spec.Name, n
		}
	}

	if best == domain.CategoryNoise {
		return Result{Category: best, Score: NoiseScore, Method: MethodRegex}
	}

	confidence := 0.2
	if hits > 0 {
		confidence = math.Min(float64(hits)/3, 1)
	}
	return Result{Category: best, Score: round2(5 + c.weights[best] + confidence*5), Method: MethodRegex}
}

func (c *Classifier) noisy(text string) bool {
	for _, cat := range c.cats {
		if cat.spec.Name != domain.CategoryNoise {
			continue
		}
		for _, re := range cat.patterns {
			if re.MatchString(text) {
				return true
			}
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// chainEmbedder embeds through the registry so blocks and exhaustion apply to every caller.
type chainEmbedder struct {
	c   *Classifier
	reg *provider.Registry
}

// Embedder exposes the classifier's provider chain as a single embedder bound to reg.
func (c *Classifier) Embedder(reg *provider.Registry) ports.Embedder {
	return chainEmbedder{c: c, reg: reg}
}

func (e chainEmbedder) Name() string { return "chain" }

func (e chainEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, domain.Outcome, error) {
	if e.reg == nil || len(e.c.order) == 0 {
		return nil, domain.OutcomeFailure, domain.ErrAllProvidersBlocked
	}
	vecs, _, err := provider.Call(ctx, e.reg, provider.Classification, e.c.order,
		func(ctx context.Context, name string) provider.Attempt[[][]float32] {
			vecs, outcome, err := e.c.embedders[name].Embed(ctx, texts)
			return provider.Attempt[[][]float32]{Value: vecs, Outcome: outcome, Err: err}
		})
	if err != nil {
		return nil, domain.OutcomeFailure, err
	}
	return vecs, domain.OutcomeSuccess, nil
}
