package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"design_vault/internal/domain/models"
	"design_vault/internal/lib/apperr"
	"design_vault/internal/lib/logger/sl"
	"design_vault/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	gocache "github.com/patrickmn/go-cache"
)

// Suggestion ответ /api/generate-tags.
type Suggestion struct {
	Tags     []string `json:"tags"`
	Fallback bool     `json:"fallback,omitempty"`
}

// Generator внешний AI-сервис подбора тегов.
type Generator interface {
	Generate(ctx context.Context, filename, imageURL string) ([]string, error)
}

type Options struct {
	AttemptTimeout time.Duration
	MaxRetries     uint64
	InitialBackoff time.Duration
	CacheTTL       time.Duration
}

type TagService struct {
	log  *slog.Logger
	gen  Generator
	memo *gocache.Cache
	opts Options
}

// NewTagService gen может быть nil: тогда всегда используется эвристика.
func NewTagService(log *slog.Logger, gen Generator, opts Options) *TagService {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 30 * time.Second
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 2 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}

	return &TagService{
		log:  log,
		gen:  gen,
		memo: gocache.New(opts.CacheTTL, 2*opts.CacheTTL),
		opts: opts,
	}
}

// Suggest никогда не возвращает ошибку: при сбоях отдаются эвристические теги.
func (s *TagService) Suggest(ctx context.Context, filename, imageURL string) Suggestion {
	const op = "tag_service.Suggest"

	log := s.log.With(
		slog.String("op", op),
		slog.String("filename", filename),
	)

	key := filename + "|" + imageURL
	if cached, ok := s.memo.Get(key); ok {
		log.Debug("tag suggestion served from memo")
		return cached.(Suggestion)
	}

	var result Suggestion

	tags, err := s.generate(ctx, filename, imageURL)
	switch {
	case err != nil:
		log.Warn("tag generation failed, using heuristics", sl.Err(err))
		result = Suggestion{Tags: HeuristicTags(filename), Fallback: true}
	case len(tags) == 0:
		log.Info("tag generator returned no usable tags, using heuristics")
		result = Suggestion{Tags: HeuristicTags(filename), Fallback: true}
	default:
		result = Suggestion{Tags: tags}
	}

	s.memo.Set(key, result, gocache.DefaultExpiration)

	source := "ai"
	if result.Fallback {
		source = "heuristic"
	}
	metrics.TagSuggestions.WithLabelValues(source).Inc()

	return result
}

func (s *TagService) generate(ctx context.Context, filename, imageURL string) ([]string, error) {
	const op = "tag_service.generate"

	if s.gen == nil {
		return nil, apperr.E(apperr.KindTagGeneration, op, errors.New("tag generator is not configured"))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = s.opts.InitialBackoff * 8
	b.MaxElapsedTime = 0
	b.Reset()

	var tags []string
	attempt := 0

	operation := func() error {
		attempt++

		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.AttemptTimeout)
		defer cancel()

		raw, err := s.gen.Generate(attemptCtx, filename, imageURL)
		if err != nil {
			s.log.Debug("tag generation attempt failed",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				sl.Err(err),
			)
			return err
		}

		tags = models.SanitizeTags(raw)
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, s.opts.MaxRetries), ctx))
	if err != nil {
		return nil, apperr.E(apperr.KindTagGeneration, op, err)
	}

	return tags, nil
}

// HTTPGenerator вызывает AI endpoint: POST {filename, image_url} -> {tags}.
type HTTPGenerator struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPGenerator(endpoint, apiKey string, client *http.Client) *HTTPGenerator {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGenerator{endpoint: endpoint, apiKey: apiKey, client: client}
}

type generateRequest struct {
	Filename string `json:"filename"`
	ImageURL string `json:"image_url,omitempty"`
}

type generateResponse struct {
	Tags []string `json:"tags"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, filename, imageURL string) ([]string, error) {
	const op = "tag_service.HTTPGenerator.Generate"

	body, err := json.Marshal(generateRequest{Filename: filename, ImageURL: imageURL})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%s: %w", op, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%s: %w", op, err))
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, bytes.TrimSpace(msg))
		// 4xx повторять бессмысленно, кроме 429
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: failed to decode response: %w", op, err)
	}

	return out.Tags, nil
}
