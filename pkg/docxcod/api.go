// Package docxcod renders DOCX templates whose logic is written in Word
// merge fields, including charts that are cloned per loop iteration together
// with their embedded workbooks.
//
// Basic Usage:
//
//	tmpl, err := docxcod.PrepareFile("report.docx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tmpl.Close()
//
//	output, err := tmpl.Render(docxcod.TemplateData{
//	    "regions": regions,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Template Syntax:
//
// A MERGEFIELD's name is template source. A bare name is an expression:
// MERGEFIELD customer.name renders {{customer.name}}. A name that already
// contains braces is used as is, so MERGEFIELD "{{for r in regions}}" opens a
// loop and MERGEFIELD "{{end}}" closes it.
//
// Structural directives move a field out of its paragraph or table row:
//
//	@before-row / @row        placed before the enclosing table row
//	@after-row  / @/row       placed after the enclosing table row
//	@before-para / @para      placed before the enclosing paragraph
//	@after-para / @/para      placed after the enclosing paragraph
//
// so MERGEFIELD "@row {{for p in people}}" ... MERGEFIELD "@/row {{end}}"
// repeats whole rows.
//
// Charts:
//
// A chart inside a loop is cloned on every iteration. The first worksheet of
// its embedded workbook must end with a loop coordinator row, whose first
// cell holds a loop such as "for p in r.points", followed by an item row
// whose cells hold expressions such as "{{p.month}}". The clone's workbook is
// rendered with the iteration's bindings and the chart's cached series are
// rebuilt from it.
package docxcod

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Engine provides the main API for working with templates.
// Use New() to create a new engine instance.
type Engine struct {
	config   *Config
	cache    *TemplateCache
	registry *DefaultFunctionRegistry
}

// New creates a new template engine with the global configuration.
func New() *Engine {
	return NewWithConfig(GetGlobalConfig())
}

// NewWithConfig creates a new template engine with custom configuration.
func NewWithConfig(config *Config) *Engine {
	return &Engine{
		config: config,
		cache: NewTemplateCacheWithConfig(CacheConfig{
			MaxSize: config.CacheMaxSize,
			TTL:     config.CacheTTL,
		}),
		registry: NewFunctionRegistry(),
	}
}

// PrepareFile loads and compiles a template from a file path.
// The template is cached if caching is enabled in the configuration.
func (e *Engine) PrepareFile(path string) (*PreparedTemplate, error) {
	if e.config.CacheMaxSize > 0 {
		if tmpl, ok := e.cache.Get(path); ok {
			return tmpl, nil
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template file: %w", err)
	}
	defer file.Close()

	tmpl, err := e.Prepare(file)
	if err != nil {
		return nil, err
	}

	if e.config.CacheMaxSize > 0 {
		e.cache.Set(path, tmpl)
	}
	return tmpl, nil
}

// Prepare loads and compiles a template from an io.Reader.
func (e *Engine) Prepare(r io.Reader) (*PreparedTemplate, error) {
	return prepare(r, e.config, e.registry)
}

// RegisterFunction adds a custom function that can be used in templates.
// The function name must be a valid identifier and not one of the reserved names.
func (e *Engine) RegisterFunction(fn Function) error {
	return e.registry.RegisterFunction(fn)
}

// RegisterFunctionsFromProvider registers all functions from a provider.
func (e *Engine) RegisterFunctionsFromProvider(provider FunctionProvider) error {
	for name, fn := range provider.ProvideFunctions() {
		if err := e.registry.RegisterFunction(fn); err != nil {
			return fmt.Errorf("failed to register function %s: %w", name, err)
		}
	}
	return nil
}

// Functions returns the engine's registry of custom functions.
func (e *Engine) Functions() FunctionRegistry {
	return e.registry
}

// Config returns the engine's configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// ClearCache removes all templates from the cache.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// Close releases the cached templates.
func (e *Engine) Close() error {
	return e.cache.Close()
}

// Option represents a configuration option for the engine.
type Option func(*Engine)

// WithConfig returns an option that sets the engine configuration.
func WithConfig(config *Config) Option {
	return func(e *Engine) {
		e.config = config
		e.cache = NewTemplateCacheWithConfig(CacheConfig{
			MaxSize: config.CacheMaxSize,
			TTL:     config.CacheTTL,
		})
	}
}

// WithCache returns an option that sets the cache size (0 disables caching).
func WithCache(maxSize int, ttl time.Duration) Option {
	return func(e *Engine) {
		config := *e.config
		config.CacheMaxSize = maxSize
		config.CacheTTL = ttl
		WithConfig(&config)(e)
	}
}

// WithStrictMode returns an option that makes a failed chart duplication fail the render.
func WithStrictMode(strict bool) Option {
	return func(e *Engine) {
		config := *e.config
		config.StrictMode = strict
		e.config = &config
	}
}

// WithFunction returns an option that registers a custom function.
// Invalid names are logged and ignored.
func WithFunction(fn Function) Option {
	return func(e *Engine) {
		if err := e.RegisterFunction(fn); err != nil {
			GetLogger().WithError(err).Warn("Function not registered")
		}
	}
}

// WithFunctionProvider returns an option that registers functions from a provider.
func WithFunctionProvider(provider FunctionProvider) Option {
	return func(e *Engine) {
		if err := e.RegisterFunctionsFromProvider(provider); err != nil {
			GetLogger().WithError(err).Warn("Function provider not registered")
		}
	}
}

// NewWithOptions creates a new engine with the specified options.
func NewWithOptions(opts ...Option) *Engine {
	engine := New()
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// DefaultEngine is the global default engine instance.
var DefaultEngine = New()

// PrepareFile loads and compiles a template from a file path using the default engine.
func PrepareFile(path string) (*PreparedTemplate, error) {
	return DefaultEngine.PrepareFile(path)
}

// Prepare loads and compiles a template from an io.Reader using the default engine.
func Prepare(r io.Reader) (*PreparedTemplate, error) {
	return DefaultEngine.Prepare(r)
}

// RegisterGlobalFunction adds a custom function to the default engine.
func RegisterGlobalFunction(fn Function) error {
	return DefaultEngine.RegisterFunction(fn)
}

// RegisterFunctionsFromProvider registers functions from a provider with the default engine.
func RegisterFunctionsFromProvider(provider FunctionProvider) error {
	return DefaultEngine.RegisterFunctionsFromProvider(provider)
}

// ClearCache clears the default engine's template cache.
func ClearCache() {
	DefaultEngine.ClearCache()
}
