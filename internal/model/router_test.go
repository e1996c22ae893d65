package model

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akindolabs/akindo/internal/config"
	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/logger"
	"github.com/akindolabs/akindo/internal/model/contract"
)

type stubProvider struct {
	name  string
	fail  bool
	calls int
}

func (s *stubProvider) Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	s.calls++
	if s.fail {
		return nil, fmt.Errorf("upstream unavailable")
	}
	return &contract.CompletionResponse{Content: "from " + s.name}, nil
}

func (s *stubProvider) Name() string                    { return s.name }
func (s *stubProvider) Type() string                    { return "stub" }
func (s *stubProvider) Health(ctx context.Context) error { return nil }

func stubRouter(cfg config.ModelsConfig, providers map[string]Provider) *DefaultRouter {
	return &DefaultRouter{cfg: cfg, providers: providers, log: logger.Component("model_router")}
}

func TestRoute_PrimarySucceeds(t *testing.T) {
	primary := &stubProvider{name: "gpt-4o-mini"}
	r := stubRouter(
		config.ModelsConfig{Default: "gpt-4o-mini", Fallback: "haiku", MaxFallbackAttempts: 2},
		map[string]Provider{"gpt-4o-mini": primary, "haiku": &stubProvider{name: "haiku"}},
	)

	resp, err := r.Route(context.Background(), "", contract.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from gpt-4o-mini", resp.Content)
	assert.Equal(t, 1, primary.calls)
}

func TestRoute_FallsBackOnFailure(t *testing.T) {
	primary := &stubProvider{name: "gpt-4o-mini", fail: true}
	fallback := &stubProvider{name: "haiku"}
	r := stubRouter(
		config.ModelsConfig{Default: "gpt-4o-mini", Fallback: "haiku", MaxFallbackAttempts: 2},
		map[string]Provider{"gpt-4o-mini": primary, "haiku": fallback},
	)

	resp, err := r.Route(context.Background(), "gpt-4o-mini", contract.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from haiku", resp.Content)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestRoute_FallbackAlsoFails(t *testing.T) {
	r := stubRouter(
		config.ModelsConfig{Default: "gpt-4o-mini", Fallback: "haiku", MaxFallbackAttempts: 2},
		map[string]Provider{
			"gpt-4o-mini": &stubProvider{name: "gpt-4o-mini", fail: true},
			"haiku":       &stubProvider{name: "haiku", fail: true},
		},
	)

	_, err := r.Route(context.Background(), "gpt-4o-mini", contract.CompletionRequest{})
	require.Error(t, err)
	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryModel, e.Category)
}

func TestRoute_UnknownModelResolvesToFallback(t *testing.T) {
	fallback := &stubProvider{name: "haiku"}
	r := stubRouter(
		config.ModelsConfig{Fallback: "haiku", MaxFallbackAttempts: 2},
		map[string]Provider{"haiku": fallback},
	)

	resp, err := r.Route(context.Background(), "does-not-exist", contract.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from haiku", resp.Content)
}

func TestRoute_UnknownModelNoFallback(t *testing.T) {
	r := stubRouter(config.ModelsConfig{}, map[string]Provider{})

	_, err := r.Route(context.Background(), "does-not-exist", contract.CompletionRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))
}

func TestRoute_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := stubRouter(
		config.ModelsConfig{Default: "gpt-4o-mini"},
		map[string]Provider{"gpt-4o-mini": &stubProvider{name: "gpt-4o-mini"}},
	)

	_, err := r.Route(ctx, "gpt-4o-mini", contract.CompletionRequest{})
	require.Error(t, err)
}

func TestNewRouter_SkipsBrokenProviders(t *testing.T) {
	// Missing API key: provider creation fails, router init fails when no
	// provider survives.
	_, err := NewRouter(config.ModelsConfig{
		Registry: []config.ModelRegistry{{Name: "gpt-4o-mini", Provider: "openai"}},
	})
	assert.Error(t, err)
}

func TestListModels(t *testing.T) {
	r := stubRouter(config.ModelsConfig{}, map[string]Provider{
		"a": &stubProvider{name: "a"},
		"b": &stubProvider{name: "b"},
	})
	assert.ElementsMatch(t, []string{"a", "b"}, r.ListModels())
}
