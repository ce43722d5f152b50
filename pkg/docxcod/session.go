package docxcod

import (
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
)

const (
	chartUIDFunction = "chartUid"
	chartRefFunction = "chartRef"
	// chartUIDVariable holds the uid of the chart being rendered in the current scope.
	chartUIDVariable = "docxcodChartUid"
)

// Environment is an immutable snapshot of the bindings in scope at a call site.
type Environment struct {
	bindings map[string]interface{}
}

// NewEnvironment copies data into a snapshot. Later changes to data are not seen.
func NewEnvironment(data TemplateData) Environment {
	bindings := make(map[string]interface{}, len(data))
	for k, v := range data {
		bindings[k] = v
	}
	return Environment{bindings: bindings}
}

// Lookup returns the value bound to name.
func (e Environment) Lookup(name string) (interface{}, bool) {
	v, ok := e.bindings[name]
	return v, ok
}

// Names returns the bound names in sorted order.
func (e Environment) Names() []string {
	names := make([]string, 0, len(e.bindings))
	for name := range e.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Data returns a copy of the bindings, ready to render another template with.
func (e Environment) Data() TemplateData {
	data := make(TemplateData, len(e.bindings))
	for k, v := range e.bindings {
		data[k] = v
	}
	return data
}

// ChartOp is an operation a template may request from its render session.
type ChartOp int

const (
	// ChartOpUID requests the next uid for an original relationship id.
	// Arguments: originalID.
	ChartOpUID ChartOp = iota
	// ChartOpDuplicate clones a chart and yields the id to reference it by.
	// Arguments: originalID, uid.
	ChartOpDuplicate
)

func (op ChartOp) String() string {
	switch op {
	case ChartOpUID:
		return chartUIDFunction
	case ChartOpDuplicate:
		return chartRefFunction
	default:
		return fmt.Sprintf("ChartOp(%d)", int(op))
	}
}

// ChartDispatcher serves the chart operations of one render.
type ChartDispatcher interface {
	Dispatch(op ChartOp, env Environment, args ...string) (string, error)
}

// chartUIDCounter hands out uids per original id, each counting from 0.
type chartUIDCounter struct {
	next map[string]int
}

func newChartUIDCounter() *chartUIDCounter {
	return &chartUIDCounter{next: make(map[string]int)}
}

func (c *chartUIDCounter) Next(originalID string) string {
	n := c.next[originalID]
	c.next[originalID] = n + 1
	return strconv.Itoa(n)
}

var renderSeq atomic.Int64

// renderSession is the state of one render: the uid counter and the chart
// executor working on the render's own package copy.
type renderSession struct {
	counter  *chartUIDCounter
	executor *chartExecutor
	config   *Config
	logger   *Logger
}

func newRenderSession(pkg *Package, config *Config, functions FunctionRegistry) *renderSession {
	logger := GetLogger().WithField("render", renderSeq.Add(1))
	return &renderSession{
		counter:  newChartUIDCounter(),
		executor: newChartExecutor(pkg, MainDocumentPart, config, functions, logger),
		config:   config,
		logger:   logger,
	}
}

// Dispatch implements ChartDispatcher. A failed duplication yields the
// original id so the rendered document keeps referencing the source chart,
// unless the session runs in strict mode.
func (s *renderSession) Dispatch(op ChartOp, env Environment, args ...string) (string, error) {
	switch op {
	case ChartOpUID:
		if len(args) != 1 {
			return "", NewFunctionError(op.String(), stringArgs(args), "expects 1 argument")
		}
		return s.counter.Next(args[0]), nil

	case ChartOpDuplicate:
		if len(args) != 2 {
			return "", NewFunctionError(op.String(), stringArgs(args), "expects 2 arguments")
		}
		originalID, uid := args[0], args[1]
		newID, err := s.executor.Duplicate(originalID, uid, env)
		if err != nil {
			s.logger.WithError(err).WithFields(Fields{
				"original_id": originalID,
				"clone_id":    CloneRelationshipID(originalID, uid),
			}).Warn("Chart duplication failed, keeping original chart")
			if s.config.StrictMode {
				return "", WithContext(err, "duplicate chart", map[string]interface{}{
					"original_id": originalID,
					"clone_id":    CloneRelationshipID(originalID, uid),
				})
			}
			return originalID, nil
		}
		return newID, nil
	}

	return "", fmt.Errorf("unknown chart operation %v", op)
}

func stringArgs(args []string) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}
