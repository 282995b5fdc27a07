package llm

import (
	"fmt"
	"sync"

	"github.com/openresearch/deepsearch/pkg/config"
	"github.com/openresearch/deepsearch/pkg/domain"
)

// ProviderFactory builds a generation client from configuration.
type ProviderFactory func(cfg config.LLMConfig) (domain.GenerationClient, error)

// Registry maps provider names to factories. New providers register a
// factory; callers resolve a client by the configured provider name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewRegistry creates a registry with the built-in providers registered.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]ProviderFactory),
	}

	r.MustRegister("deepseek", func(cfg config.LLMConfig) (domain.GenerationClient, error) {
		opts := &OpenAIOptions{BaseURL: cfg.BaseURL, Timeout: cfg.TimeoutDuration()}
		return NewDeepSeekClient(cfg.APIKey, cfg.Model, opts), nil
	})
	r.MustRegister("openai", func(cfg config.LLMConfig) (domain.GenerationClient, error) {
		opts := &OpenAIOptions{BaseURL: cfg.BaseURL, Timeout: cfg.TimeoutDuration()}
		return NewOpenAIClient(cfg.APIKey, cfg.Model, opts), nil
	})
	r.MustRegister("ollama", func(cfg config.LLMConfig) (domain.GenerationClient, error) {
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return NewOllamaClient(baseURL, cfg.Model, &OllamaOptions{Timeout: cfg.TimeoutDuration()}), nil
	})

	return r
}

// Register registers a provider factory under a name.
func (r *Registry) Register(name string, factory ProviderFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.factories[name] = factory
	return nil
}

// MustRegister registers a factory and panics on conflict. Used for the
// built-in providers at construction time.
func (r *Registry) MustRegister(name string, factory ProviderFactory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Resolve builds a client for the configured provider.
func (r *Registry) Resolve(cfg config.LLMConfig) (domain.GenerationClient, error) {
	r.mu.RLock()
	factory, exists := r.factories[cfg.Provider]
	r.mu.RUnlock()

	if !exists {
		return nil, &domain.ConfigError{Field: "llm.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}
	return factory(cfg)
}

// Providers returns the registered provider names.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
