package docxcod

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

// Expression is a template expression in expr-lang syntax. It is syntax
// checked when parsed and compiled against the live scope on every evaluation,
// so the same expression can see different bindings and callables.
type Expression struct {
	Source string
}

// ParseExpression checks the syntax of src.
func ParseExpression(src string) (*Expression, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, NewParseError("empty expression", "", 0)
	}
	if _, err := expr.Compile(src, expr.AllowUndefinedVariables()); err != nil {
		return nil, NewParseError(err.Error(), src, 0)
	}
	return &Expression{Source: src}, nil
}

func (e *Expression) String() string {
	return e.Source
}

// Evaluate runs the expression against data and the callables of ctx.
func (e *Expression) Evaluate(ctx *renderContext, data TemplateData) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewEvaluationError(e.Source, RecoverError(r))
		}
	}()

	env := ctx.environment(e.Source, data)
	program, err := expr.Compile(e.Source, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, NewEvaluationError(e.Source, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, NewEvaluationError(e.Source, err)
	}

	if ctx.logger.IsDebugMode() {
		ctx.logger.WithFields(Fields{
			"expression": e.Source,
			"result":     out,
		}).Debug("Expression evaluated")
	}
	return out, nil
}

// renderContext carries the callables visible to one render.
type renderContext struct {
	functions  map[string]Function
	dispatcher ChartDispatcher
	logger     *Logger
}

// environment builds the expr-lang environment: scope bindings first, then
// registered functions, then the chart callables when src mentions them.
func (ctx *renderContext) environment(src string, data TemplateData) map[string]interface{} {
	env := make(map[string]interface{}, len(data)+len(ctx.functions)+2)
	for k, v := range data {
		env[k] = v
	}
	for name, fn := range ctx.functions {
		env[name] = func(args ...interface{}) (interface{}, error) {
			return fn.Call(args...)
		}
	}

	if ctx.dispatcher != nil && (strings.Contains(src, chartUIDFunction) || strings.Contains(src, chartRefFunction)) {
		snapshot := NewEnvironment(data)
		env[chartUIDFunction] = func(originalID string) (string, error) {
			return ctx.dispatcher.Dispatch(ChartOpUID, snapshot, originalID)
		}
		env[chartRefFunction] = func(originalID, uid string) (string, error) {
			return ctx.dispatcher.Dispatch(ChartOpDuplicate, snapshot, originalID, uid)
		}
	}
	return env
}

// FormatValue converts a value to its string representation
func FormatValue(value interface{}) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", v)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', 10, 32)
	case float64:
		// 'g' with 15 digits drops trailing zeros and float noise
		return strconv.FormatFloat(v, 'g', 15, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// escapeXML makes s safe for both element text and attribute values.
func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

func isTruthy(val interface{}) bool {
	if val == nil {
		return false
	}

	switch v := val.(type) {
	case bool:
		return v
	case string:
		return v != ""
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// toSlice converts various types to []interface{} for iteration
func toSlice(val interface{}) ([]interface{}, error) {
	if val == nil {
		return []interface{}{}, nil
	}

	switch v := val.(type) {
	case []interface{}:
		return v, nil
	case []string:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = item
		}
		return result, nil
	case []map[string]interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = item
		}
		return result, nil
	case map[string]interface{}:
		return mapEntries(v), nil
	case TemplateData:
		return mapEntries(v), nil
	case string:
		result := make([]interface{}, 0, len(v))
		for _, char := range v {
			result = append(result, string(char))
		}
		return result, nil
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		result := make([]interface{}, rv.Len())
		for i := range result {
			result[i] = rv.Index(i).Interface()
		}
		return result, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// "for i in 3" counts 0..2
		n := int(rv.Int())
		if n < 0 {
			n = 0
		}
		result := make([]interface{}, 0, n)
		for i := 0; i < n; i++ {
			result = append(result, i)
		}
		return result, nil
	}
	return nil, fmt.Errorf("type %T is not iterable", val)
}

// mapEntries turns a map into key/value pairs ordered by key.
func mapEntries(m map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		result = append(result, map[string]interface{}{
			"key":   k,
			"value": m[k],
		})
	}
	return result
}
