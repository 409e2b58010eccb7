package llm

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/paperhold/docvault/internal/common"
)

// Registry holds the configured providers. It is built once at startup and
// passed into the pipeline, so tests can substitute fakes without touching
// globals.
type Registry struct {
	providers map[string]Provider
	def       string
	log       *slog.Logger
}

func NewRegistry(def string, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{providers: make(map[string]Provider), def: def, log: log}
}

// Register adds a provider under its own name.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
	r.log.Info("llm.provider_registered", "provider", p.Name())
}

// Get resolves a provider by name; an empty name selects the default. A
// missing provider is a configuration error, distinguishable from transient
// failures.
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.def
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, common.NewAppError("PROVIDER_NOT_CONFIGURED",
			fmt.Sprintf("provider %q has no API key configured", name), common.ErrProviderConfig)
	}
	return p, nil
}

// Names lists the registered providers, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for n := range r.providers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
