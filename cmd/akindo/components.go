package main

import (
	"context"
	"fmt"

	"github.com/akindolabs/akindo/internal/agent"
	"github.com/akindolabs/akindo/internal/checkpoint"
	"github.com/akindolabs/akindo/internal/commerce"
	"github.com/akindolabs/akindo/internal/config"
	"github.com/akindolabs/akindo/internal/graph"
	"github.com/akindolabs/akindo/internal/janitor"
	"github.com/akindolabs/akindo/internal/model"
	"github.com/akindolabs/akindo/internal/recovery"
	"github.com/akindolabs/akindo/internal/security"
	"github.com/akindolabs/akindo/internal/tool"
	"github.com/akindolabs/akindo/internal/tool/builtin"
)

// components holds the wired engine shared by serve and repl.
type components struct {
	agent   *agent.Agent
	janitor *janitor.Janitor
}

func buildComponents(cfg *config.Config) (*components, error) {
	backend := commerce.NewMemoryBackend()
	if err := commerce.SeedDemo(context.Background(), backend); err != nil {
		return nil, fmt.Errorf("seed catalog: %w", err)
	}

	registry := tool.NewRegistry()
	if err := builtin.New(backend, cfg.Graph.ComparisonCapacity).Register(registry); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	if err := registry.ApplyOverrideFiles(cfg.Tools.DefinitionPaths); err != nil {
		return nil, fmt.Errorf("apply tool overrides: %w", err)
	}

	router, err := model.NewRouter(cfg.Models)
	if err != nil {
		return nil, fmt.Errorf("init model router: %w", err)
	}

	boundary, err := recovery.NewBoundary(cfg.Recovery)
	if err != nil {
		return nil, fmt.Errorf("init recovery boundary: %w", err)
	}

	policy, err := security.PolicyFrom(cfg.Security)
	if err != nil {
		return nil, fmt.Errorf("init security policy: %w", err)
	}

	var store checkpoint.Store
	if cfg.Checkpoint.Enabled {
		store, err = checkpoint.NewFileStore(cfg.Checkpoint.Path)
		if err != nil {
			return nil, fmt.Errorf("init checkpoint store: %w", err)
		}
	}

	pipeline := graph.NewPipeline(router, registry, cfg.Graph, cfg.Models.Default)
	a := agent.New(graph.New(pipeline, boundary, cfg.Graph), boundary, policy, store)

	var j *janitor.Janitor
	if cfg.Janitor.Enabled {
		j, err = janitor.New(a, cfg.Janitor)
		if err != nil {
			return nil, fmt.Errorf("init janitor: %w", err)
		}
	}

	return &components{agent: a, janitor: j}, nil
}
