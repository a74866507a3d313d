package app

import (
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vk/accgraph/internal/definition"
	"github.com/vk/accgraph/internal/hcl_adapter"
	"github.com/vk/accgraph/internal/pipeline"
	"github.com/vk/accgraph/internal/yaml_adapter"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	outMu   sync.Mutex
	logger  *slog.Logger
	config  *Config
	loaders []definition.Loader

	mu         sync.Mutex
	pipelines  map[string]*pipeline.Pipeline
	httpServer *http.Server
}

// NewApp is the constructor for the main application. Without loaders it
// reads HCL and YAML definitions.
func NewApp(outW io.Writer, cfg *Config, loaders ...definition.Loader) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	if len(loaders) == 0 {
		loaders = []definition.Loader{hcl_adapter.NewLoader(), yaml_adapter.NewLoader()}
	}
	return &App{
		outW:      outW,
		logger:    logger,
		config:    cfg,
		loaders:   loaders,
		pipelines: make(map[string]*pipeline.Pipeline),
	}
}

func (a *App) track(name string, p *pipeline.Pipeline) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pipelines[name] = p
}

// States returns the state of every pipeline built so far.
func (a *App) States() map[string]pipeline.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]pipeline.State, len(a.pipelines))
	for name, p := range a.pipelines {
		out[name] = p.State()
	}
	return out
}
