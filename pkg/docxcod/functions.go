package docxcod

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// Function represents a callable function in templates
type Function interface {
	// Call executes the function with the given arguments
	Call(args ...interface{}) (interface{}, error)

	// Name returns the function name
	Name() string

	// MinArgs returns the minimum number of arguments required
	MinArgs() int

	// MaxArgs returns the maximum number of arguments allowed (-1 for unlimited)
	MaxArgs() int
}

// FunctionRegistry manages available functions
type FunctionRegistry interface {
	RegisterFunction(fn Function) error
	GetFunction(name string) (Function, bool)
	ListFunctions() []string
}

// FunctionProvider supplies functions for a single render, such as the row
// counters of a spreadsheet pass.
type FunctionProvider interface {
	ProvideFunctions() map[string]Function
}

// reservedFunctionNames are resolved by the render session or by expr itself.
var reservedFunctionNames = map[string]bool{
	chartUIDFunction: true,
	chartRefFunction: true,
	"len":            true,
	"join":           true,
	"upper":          true,
	"lower":          true,
	"trim":           true,
	"split":          true,
	"replace":        true,
	"map":            true,
	"filter":         true,
}

// DefaultFunctionRegistry is the default implementation of FunctionRegistry
type DefaultFunctionRegistry struct {
	functions map[string]Function
	mutex     sync.RWMutex
}

// NewFunctionRegistry creates an empty function registry
func NewFunctionRegistry() *DefaultFunctionRegistry {
	return &DefaultFunctionRegistry{
		functions: make(map[string]Function),
	}
}

func (r *DefaultFunctionRegistry) RegisterFunction(fn Function) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	name := fn.Name()
	if name == "" {
		return fmt.Errorf("function name cannot be empty")
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("function name %q is not a valid identifier", name)
	}
	if reservedFunctionNames[name] {
		return fmt.Errorf("function name %q is reserved", name)
	}

	r.functions[name] = fn
	return nil
}

func (r *DefaultFunctionRegistry) GetFunction(name string) (Function, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	fn, exists := r.functions[name]
	return fn, exists
}

func (r *DefaultFunctionRegistry) ListFunctions() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	globalRegistry *DefaultFunctionRegistry
	registryOnce   sync.Once
)

// GetDefaultFunctionRegistry returns the registry holding the built-in functions
func GetDefaultFunctionRegistry() FunctionRegistry {
	registryOnce.Do(func() {
		globalRegistry = NewFunctionRegistry()
		registerBasicFunctions(globalRegistry)
	})
	return globalRegistry
}

// SimpleFunctionImpl provides a basic implementation of Function
type SimpleFunctionImpl struct {
	name    string
	minArgs int
	maxArgs int
	handler func(args ...interface{}) (interface{}, error)
}

func NewSimpleFunction(name string, minArgs, maxArgs int, handler func(args ...interface{}) (interface{}, error)) Function {
	return &SimpleFunctionImpl{
		name:    name,
		minArgs: minArgs,
		maxArgs: maxArgs,
		handler: handler,
	}
}

func (f *SimpleFunctionImpl) Call(args ...interface{}) (interface{}, error) {
	argCount := len(args)
	if argCount < f.minArgs {
		return nil, NewFunctionError(f.name, args, fmt.Sprintf("requires at least %d arguments, got %d", f.minArgs, argCount))
	}
	if f.maxArgs >= 0 && argCount > f.maxArgs {
		return nil, NewFunctionError(f.name, args, fmt.Sprintf("accepts at most %d arguments, got %d", f.maxArgs, argCount))
	}
	return f.handler(args...)
}

func (f *SimpleFunctionImpl) Name() string {
	return f.name
}

func (f *SimpleFunctionImpl) MinArgs() int {
	return f.minArgs
}

func (f *SimpleFunctionImpl) MaxArgs() int {
	return f.maxArgs
}

// registerBasicFunctions registers the basic built-in functions
func registerBasicFunctions(registry *DefaultFunctionRegistry) {
	// empty() function - checks if a value is empty
	registry.RegisterFunction(NewSimpleFunction("empty", 1, 1, func(args ...interface{}) (interface{}, error) {
		return isEmpty(args[0]), nil
	}))

	// coalesce() function - returns first non-empty value
	registry.RegisterFunction(NewSimpleFunction("coalesce", 1, -1, func(args ...interface{}) (interface{}, error) {
		for _, arg := range args {
			if !isEmpty(arg) {
				return arg, nil
			}
		}
		return nil, nil
	}))

	registry.RegisterFunction(NewSimpleFunction("str", 1, 1, func(args ...interface{}) (interface{}, error) {
		return FormatValue(args[0]), nil
	}))

	registry.RegisterFunction(NewSimpleFunction("integer", 1, 1, func(args ...interface{}) (interface{}, error) {
		return toInteger(args[0])
	}))

	registry.RegisterFunction(NewSimpleFunction("decimal", 1, 1, func(args ...interface{}) (interface{}, error) {
		return toDecimal(args[0])
	}))

	registry.RegisterFunction(NewSimpleFunction("lowercase", 1, 1, func(args ...interface{}) (interface{}, error) {
		if args[0] == nil {
			return nil, nil
		}
		return strings.ToLower(FormatValue(args[0])), nil
	}))

	registry.RegisterFunction(NewSimpleFunction("uppercase", 1, 1, func(args ...interface{}) (interface{}, error) {
		if args[0] == nil {
			return nil, nil
		}
		return strings.ToUpper(FormatValue(args[0])), nil
	}))

	registry.RegisterFunction(NewSimpleFunction("titlecase", 1, 1, func(args ...interface{}) (interface{}, error) {
		if args[0] == nil {
			return nil, nil
		}
		return toTitleCase(FormatValue(args[0])), nil
	}))

	// joinAnd() function - joins with a separator and a distinct last separator
	registry.RegisterFunction(NewSimpleFunction("joinAnd", 3, 3, func(args ...interface{}) (interface{}, error) {
		if args[0] == nil {
			return "", nil
		}
		items, err := toSlice(args[0])
		if err != nil {
			return nil, NewFunctionError("joinAnd", args, "first parameter must be a collection")
		}
		sep, ok1 := args[1].(string)
		lastSep, ok2 := args[2].(string)
		if !ok1 || !ok2 {
			return nil, NewFunctionError("joinAnd", args, "separators must be strings")
		}

		var strItems []string
		for _, item := range items {
			if item != nil {
				strItems = append(strItems, FormatValue(item))
			}
		}

		switch len(strItems) {
		case 0:
			return "", nil
		case 1:
			return strItems[0], nil
		default:
			return strings.Join(strItems[:len(strItems)-1], sep) + lastSep + strItems[len(strItems)-1], nil
		}
	}))

	// format() function - printf-style formatting, numbers coerced to the verb
	registry.RegisterFunction(NewSimpleFunction("format", 1, -1, func(args ...interface{}) (interface{}, error) {
		pattern, ok := args[0].(string)
		if !ok {
			return nil, NewFunctionError("format", args, "pattern must be a string")
		}
		return formatPattern(pattern, args[1:])
	}))
}

var formatVerbRegex = regexp.MustCompile(`%[-+# 0]*\d*(?:\.\d+)?([a-zA-Z%])`)

// formatPattern applies fmt verbs to values, converting numeric strings and
// mismatched number kinds so that "%.2f" of an int or "%d" of "42" work.
func formatPattern(pattern string, values []interface{}) (string, error) {
	converted := make([]interface{}, len(values))
	copy(converted, values)

	argIndex := 0
	for _, m := range formatVerbRegex.FindAllStringSubmatch(pattern, -1) {
		verb := m[1]
		if verb == "%" {
			continue
		}
		if argIndex >= len(converted) {
			return "", NewFunctionError("format", values, fmt.Sprintf("missing argument for %s", m[0]))
		}

		switch verb {
		case "d", "x", "X", "o", "b":
			v, err := toInteger(converted[argIndex])
			if err != nil {
				return "", NewFunctionError("format", values, err.Error())
			}
			converted[argIndex] = v
		case "f", "F", "e", "E", "g", "G":
			v, err := toDecimal(converted[argIndex])
			if err != nil {
				return "", NewFunctionError("format", values, err.Error())
			}
			converted[argIndex] = v
		case "s":
			converted[argIndex] = FormatValue(converted[argIndex])
		}
		argIndex++
	}

	return fmt.Sprintf(pattern, converted...), nil
}

// isEmpty checks if a value is considered empty
func isEmpty(val interface{}) bool {
	if val == nil {
		return true
	}
	if s, ok := val.(string); ok {
		return s == ""
	}
	switch reflect.ValueOf(val).Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Slice, reflect.Array, reflect.Map:
		return !isTruthy(val)
	default:
		return false
	}
}

// toInteger converts various types to integer
func toInteger(val interface{}) (interface{}, error) {
	if val == nil {
		return nil, nil
	}

	switch v := val.(type) {
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.Atoi(s); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), nil
		}
		return nil, fmt.Errorf("cannot convert string %q to integer", v)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return int(rv.Float()), nil
	}
	return nil, fmt.Errorf("cannot convert %T to integer", val)
}

// toDecimal converts various types to decimal (float64)
func toDecimal(val interface{}) (interface{}, error) {
	if val == nil {
		return nil, nil
	}

	switch v := val.(type) {
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, nil
		}
		return nil, fmt.Errorf("cannot convert string %q to decimal", v)
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return nil, fmt.Errorf("cannot convert %T to decimal", val)
}

// toTitleCase capitalizes the first letter of each word and lowercases the rest
func toTitleCase(s string) string {
	var result strings.Builder
	result.Grow(len(s))

	startOfWord := true
	for _, r := range s {
		if unicode.IsSpace(r) {
			startOfWord = true
			result.WriteRune(r)
			continue
		}
		if startOfWord {
			result.WriteRune(unicode.ToUpper(r))
			startOfWord = false
		} else {
			result.WriteRune(unicode.ToLower(r))
		}
	}
	return result.String()
}
