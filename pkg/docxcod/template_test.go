package docxcod

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Hi {{name}}{{if ok}}!{{end}}{{}}")
	want := []Token{
		{Type: TokenText, Value: "Hi ", Pos: 0},
		{Type: TokenVariable, Value: "name", Pos: 3},
		{Type: TokenIf, Value: "ok", Pos: 11},
		{Type: TokenText, Value: "!", Pos: 20},
		{Type: TokenEnd, Pos: 21},
		{Type: TokenText, Value: "{{}}", Pos: 28},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tokenize() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTokenKeywords(t *testing.T) {
	tests := []struct {
		content string
		want    Token
	}{
		{"for p in people", Token{Type: TokenFor, Value: "p in people"}},
		{"elsif x > 1", Token{Type: TokenElsif, Value: "x > 1"}},
		{"elseif x", Token{Type: TokenElsif, Value: "x"}},
		{"else", Token{Type: TokenElse}},
		{"unless done", Token{Type: TokenUnless, Value: "done"}},
		{"set n = 1", Token{Type: TokenSet, Value: "n = 1"}},
		{"format('%d', n)", Token{Type: TokenVariable, Value: "format('%d', n)"}},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			assert.Equal(t, tt.want, parseToken(tt.content))
		})
	}
}

func renderString(t *testing.T, src string, data TemplateData, opts ...RenderOption) string {
	t.Helper()
	tmpl, err := ParseTemplate(src)
	require.NoError(t, err)
	out, err := tmpl.Render(data, opts...)
	require.NoError(t, err)
	return out
}

func TestTemplateRender(t *testing.T) {
	data := TemplateData{
		"name":     "World",
		"qty":      3,
		"price":    19.5,
		"note":     "",
		"customer": map[string]interface{}{"name": "Ada", "vip": true},
		"items":    []string{"a", "b", "c"},
		"people": []map[string]interface{}{
			{"name": "Ann", "age": 31},
			{"name": "Bob", "age": 17},
		},
		"markup": `<b> & "quotes"`,
	}

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"plain text", "<w:t>static</w:t>", "<w:t>static</w:t>"},
		{"variable", "Hello {{name}}!", "Hello World!"},
		{"nested field", "{{customer.name}}", "Ada"},
		{"arithmetic", "{{qty * 2}}", "6"},
		{"float", "{{price}}", "19.5"},
		{"missing variable", "[{{missing}}]", "[]"},
		{"escaping", "{{markup}}", "&lt;b&gt; &amp; &quot;quotes&quot;"},
		{"if true", "{{if customer.vip}}vip{{end}}", "vip"},
		{"if else", "{{if qty > 5}}big{{else}}small{{end}}", "small"},
		{"elsif", "{{if qty > 5}}big{{elsif qty > 2}}medium{{else}}small{{end}}", "medium"},
		{"unless", "{{unless note}}none{{else}}some{{end}}", "none"},
		{"for", "{{for x in items}}[{{x}}]{{end}}", "[a][b][c]"},
		{"for with index", "{{for i, x in items}}{{i}}={{x}} {{end}}", "0=a 1=b 2=c "},
		{"for over count", "{{for i in qty}}{{i}}{{end}}", "012"},
		{"for over maps", "{{for p in people}}{{if p.age >= 18}}{{p.name}}{{end}}{{end}}", "Ann"},
		{"nested for", "{{for p in people}}{{for x in items}}{{x}}{{end}};{{end}}", "abc;abc;"},
		{"set", "{{set double = qty * 2}}{{double}}", "6"},
		{"set does not leak from loop", "{{for x in items}}{{set last = x}}{{end}}[{{last}}]", "[]"},
		{"set inside loop is visible in iteration", "{{for x in items}}{{set y = uppercase(x)}}{{y}}{{end}}", "ABC"},
		{"empty tag is literal", "a{{}}b", "a{{}}b"},
		{"builtin function", "{{uppercase(name)}}", "WORLD"},
		{"expr builtin", "{{len(items)}}", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderString(t, tt.src, data))
		})
	}
}

func TestTemplateRenderDoesNotModifyData(t *testing.T) {
	data := TemplateData{"n": 1}
	renderString(t, "{{set n = 2}}{{set m = 3}}", data)
	assert.Equal(t, TemplateData{"n": 1}, data)
}

func TestParseTemplateErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing end", "{{if x}}open"},
		{"stray end", "text{{end}}"},
		{"stray else", "{{else}}"},
		{"for without in", "{{for x items}}{{end}}"},
		{"bad loop variable", "{{for 1x in items}}{{end}}"},
		{"bad set", "{{set = 1}}"},
		{"bad expression", "{{1 +}}"},
		{"else in for", "{{for x in items}}{{else}}{{end}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate(tt.src)
			require.Error(t, err)
			assert.True(t, IsParseError(err), "got %T: %v", err, err)
		})
	}
}

func TestTemplateEvaluationErrors(t *testing.T) {
	tmpl, err := ParseTemplate("{{for x in value}}{{x}}{{end}}")
	require.NoError(t, err)

	_, err = tmpl.Render(TemplateData{"value": 3.5})
	require.Error(t, err)
	var evalErr *EvaluationError
	assert.True(t, errors.As(err, &evalErr))

	tmpl, err = ParseTemplate("{{joinAnd(value, ', ', ' and ')}}")
	require.NoError(t, err)
	_, err = tmpl.Render(TemplateData{"value": 1.5})
	require.Error(t, err)
	assert.True(t, errors.As(err, &evalErr))
	assert.Contains(t, err.Error(), "must be a collection")
}

type counterProvider struct{ n int }

func (p *counterProvider) ProvideFunctions() map[string]Function {
	return map[string]Function{
		"next": NewSimpleFunction("next", 0, 0, func(args ...interface{}) (interface{}, error) {
			p.n++
			return p.n, nil
		}),
	}
}

func TestRenderWithProvider(t *testing.T) {
	provider := &counterProvider{}
	out := renderString(t, "{{for x in 3}}{{next()}}{{end}}", nil, WithProvider(provider))
	assert.Equal(t, "123", out)
	assert.Equal(t, 3, provider.n)
}

func TestRenderWithRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	require.NoError(t, registry.RegisterFunction(NewSimpleFunction("greet", 1, 1, func(args ...interface{}) (interface{}, error) {
		return "hi " + FormatValue(args[0]), nil
	})))

	out := renderString(t, "{{greet(name)}}", TemplateData{"name": "Ann"}, WithFunctions(registry))
	assert.Equal(t, "hi Ann", out)
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		value interface{}
		want  bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{"", false},
		{"x", true},
		{0, false},
		{int64(2), true},
		{uint8(0), false},
		{0.0, false},
		{0.1, true},
		{[]string{}, false},
		{[]int{1}, true},
		{map[string]interface{}{}, false},
		{struct{}{}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isTruthy(tt.value), "%#v", tt.value)
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "42", FormatValue(42))
	assert.Equal(t, "0.1", FormatValue(0.1))
	assert.Equal(t, "3", FormatValue(3.0))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "[1 2]", FormatValue([]int{1, 2}))
}

func TestToSliceMapEntries(t *testing.T) {
	items, err := toSlice(map[string]interface{}{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"key": "a", "value": 1},
		map[string]interface{}{"key": "b", "value": 2},
	}, items)

	items, err = toSlice(-2)
	require.NoError(t, err)
	assert.Empty(t, items)
}
