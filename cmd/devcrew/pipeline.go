package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"devcrew/internal/agent"
	"devcrew/internal/bus"
	"devcrew/internal/config"
	"devcrew/internal/history"
	"devcrew/internal/ollama"
	"devcrew/internal/orchestrator"
	"devcrew/pkg/models"
)

// pipeline bundles everything one run needs, so the interactive loop can
// rebuild it when the configuration changes.
type pipeline struct {
	orch  *orchestrator.Orchestrator
	bus   *bus.Bus
	store *history.Store
}

// Close releases the pipeline's resources.
func (p *pipeline) Close() {
	if p.store != nil {
		p.store.Close()
	}
}

// buildPipeline wires the client, agents, bus and history store from the
// configuration. A history store that fails to open disables persistence
// rather than aborting the run.
func buildPipeline(cfg *config.Config) *pipeline {
	client := ollama.New(ollama.Config{
		BaseURL:    cfg.Ollama.BaseURL,
		Timeout:    cfg.Ollama.Timeout,
		MaxRetries: cfg.Ollama.MaxRetries,
	})

	params := ollama.Params{
		Temperature: cfg.Params.Temperature,
		TopP:        cfg.Params.TopP,
		MaxTokens:   cfg.Params.MaxTokens,
	}

	var store *history.Store
	var sink agent.HistorySink
	if cfg.History.Enabled {
		s, err := history.Open(cfg.History.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "history disabled: %v\n", err)
		} else if err := s.Migrate(); err != nil {
			fmt.Fprintf(os.Stderr, "history disabled: %v\n", err)
			s.Close()
		} else {
			store = s
			sink = s
		}
	}

	coordinator := agent.NewCoordinator(agent.CoordinatorConfig{
		Agent: agent.Config{
			Name:         cfg.Agents.Coordinator.Name,
			Role:         "coordinator",
			Model:        cfg.ModelFor(cfg.Agents.Coordinator),
			SystemPrompt: cfg.Agents.Coordinator.SystemPrompt,
			Client:       client,
			Params:       params,
			MaxHistory:   cfg.History.MaxEntries,
			Sink:         sink,
		},
		Policy: agent.PolicyByName(cfg.Pipeline.ApprovalPolicy),
		WorkerNames: map[models.Specialization]string{
			models.SpecFrontend: cfg.Agents.Frontend.Name,
			models.SpecBackend:  cfg.Agents.Backend.Name,
		},
	})

	newWorker := func(ac config.AgentConfig, spec models.Specialization) *agent.Worker {
		return agent.NewWorker(agent.Config{
			Name:         ac.Name,
			Role:         string(spec),
			Model:        cfg.ModelFor(ac),
			SystemPrompt: ac.SystemPrompt,
			Client:       client,
			Params:       params,
			MaxHistory:   cfg.History.MaxEntries,
			Sink:         sink,
		}, spec)
	}

	b := bus.New()
	orch := orchestrator.New(orchestrator.Config{
		Coordinator: coordinator,
		Workers: map[models.Specialization]orchestrator.Worker{
			models.SpecFrontend: newWorker(cfg.Agents.Frontend, models.SpecFrontend),
			models.SpecBackend:  newWorker(cfg.Agents.Backend, models.SpecBackend),
		},
		Bus:         b,
		Archive:     runArchiver(store),
		TaskTimeout: cfg.Pipeline.TaskTimeout,
		Concurrency: cfg.Pipeline.Concurrency,
	})

	return &pipeline{orch: orch, bus: b, store: store}
}

// runArchiver avoids handing the orchestrator a typed nil interface when
// the store is disabled.
func runArchiver(store *history.Store) orchestrator.RunArchiver {
	if store == nil {
		return nil
	}
	return store
}

// setupLogging routes the agents' log output according to --verbose.
func setupLogging() {
	if rootVerbose {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}
}
