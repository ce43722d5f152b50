package docxcod

import "strings"

// Template is parsed template source, safe to render concurrently.
type Template struct {
	Source string
	nodes  []ControlStructure
}

// ParseTemplate parses flat template source.
func ParseTemplate(src string) (*Template, error) {
	nodes, err := ParseControlStructures(src)
	if err != nil {
		return nil, err
	}
	return &Template{Source: src, nodes: nodes}, nil
}

// RenderOption configures a single render.
type RenderOption func(*renderContext)

// WithFunctions makes every function of registry callable.
func WithFunctions(registry FunctionRegistry) RenderOption {
	return func(ctx *renderContext) {
		for _, name := range registry.ListFunctions() {
			if fn, ok := registry.GetFunction(name); ok {
				ctx.functions[name] = fn
			}
		}
	}
}

// WithProvider adds the functions of provider, overriding same-named ones.
func WithProvider(provider FunctionProvider) RenderOption {
	return func(ctx *renderContext) {
		for name, fn := range provider.ProvideFunctions() {
			ctx.functions[name] = fn
		}
	}
}

// WithChartDispatcher exposes chartUid and chartRef backed by d.
func WithChartDispatcher(d ChartDispatcher) RenderOption {
	return func(ctx *renderContext) {
		ctx.dispatcher = d
	}
}

// WithRenderLogger sets the logger used for expression diagnostics.
func WithRenderLogger(logger *Logger) RenderOption {
	return func(ctx *renderContext) {
		ctx.logger = logger
	}
}

// Render evaluates the template against a copy of data. The default registry
// is always callable; options add to it.
func (t *Template) Render(data TemplateData, opts ...RenderOption) (string, error) {
	ctx := &renderContext{
		functions: make(map[string]Function),
		logger:    GetLogger(),
	}
	WithFunctions(GetDefaultFunctionRegistry())(ctx)
	for _, opt := range opts {
		opt(ctx)
	}

	scope := make(TemplateData, len(data))
	for k, v := range data {
		scope[k] = v
	}

	var out strings.Builder
	out.Grow(len(t.Source))
	if err := renderControlBody(ctx, t.nodes, scope, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}
