package docxcod

import (
	"fmt"
	"regexp"
	"strings"
)

// ControlStructure represents a control flow structure in templates
type ControlStructure interface {
	Render(ctx *renderContext, data TemplateData, out *strings.Builder) error
	String() string
}

// IfNode represents an if statement
type IfNode struct {
	Condition *Expression
	ThenBody  []ControlStructure
	ElseBody  []ControlStructure
	ElsIfs    []*ElsIfNode
}

func (n *IfNode) String() string {
	parts := []string{fmt.Sprintf("If(%s)", n.Condition)}
	for _, elsif := range n.ElsIfs {
		parts = append(parts, elsif.String())
	}
	if len(n.ElseBody) > 0 {
		parts = append(parts, "Else")
	}
	return strings.Join(parts, " ")
}

func (n *IfNode) Render(ctx *renderContext, data TemplateData, out *strings.Builder) error {
	condValue, err := n.Condition.Evaluate(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to evaluate if condition: %w", err)
	}
	if isTruthy(condValue) {
		return renderControlBody(ctx, n.ThenBody, data, out)
	}

	for _, elsif := range n.ElsIfs {
		elsifValue, err := elsif.Condition.Evaluate(ctx, data)
		if err != nil {
			return fmt.Errorf("failed to evaluate elsif condition: %w", err)
		}
		if isTruthy(elsifValue) {
			return renderControlBody(ctx, elsif.Body, data, out)
		}
	}

	return renderControlBody(ctx, n.ElseBody, data, out)
}

// ElsIfNode represents an elsif/elseif clause
type ElsIfNode struct {
	Condition *Expression
	Body      []ControlStructure
}

func (n *ElsIfNode) String() string {
	return fmt.Sprintf("ElsIf(%s)", n.Condition)
}

// UnlessNode represents an unless statement (negated if)
type UnlessNode struct {
	Condition *Expression
	ThenBody  []ControlStructure
	ElseBody  []ControlStructure
}

func (n *UnlessNode) String() string {
	return fmt.Sprintf("Unless(%s)", n.Condition)
}

func (n *UnlessNode) Render(ctx *renderContext, data TemplateData, out *strings.Builder) error {
	condValue, err := n.Condition.Evaluate(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to evaluate unless condition: %w", err)
	}
	if !isTruthy(condValue) {
		return renderControlBody(ctx, n.ThenBody, data, out)
	}
	return renderControlBody(ctx, n.ElseBody, data, out)
}

// ForNode represents a for loop
type ForNode struct {
	Variable   string
	IndexVar   string // Optional index variable for indexed loops
	Collection *Expression
	Body       []ControlStructure
}

func (n *ForNode) String() string {
	if n.IndexVar != "" {
		return fmt.Sprintf("For(%s, %s in %s)", n.IndexVar, n.Variable, n.Collection)
	}
	return fmt.Sprintf("For(%s in %s)", n.Variable, n.Collection)
}

func (n *ForNode) Render(ctx *renderContext, data TemplateData, out *strings.Builder) error {
	collectionVal, err := n.Collection.Evaluate(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to evaluate collection: %w", err)
	}

	items, err := toSlice(collectionVal)
	if err != nil {
		return NewEvaluationError(n.Collection.Source, fmt.Errorf("collection is not iterable: %w", err))
	}

	for i, item := range items {
		// each iteration gets its own scope so set bindings do not leak
		loopData := make(TemplateData, len(data)+2)
		for k, v := range data {
			loopData[k] = v
		}
		loopData[n.Variable] = item
		if n.IndexVar != "" {
			loopData[n.IndexVar] = i
		}

		if err := renderControlBody(ctx, n.Body, loopData, out); err != nil {
			return err
		}
	}
	return nil
}

// SetNode binds the value of an expression in the current scope
type SetNode struct {
	Name  string
	Value *Expression
}

func (n *SetNode) String() string {
	return fmt.Sprintf("Set(%s = %s)", n.Name, n.Value)
}

func (n *SetNode) Render(ctx *renderContext, data TemplateData, out *strings.Builder) error {
	value, err := n.Value.Evaluate(ctx, data)
	if err != nil {
		return err
	}
	data[n.Name] = value
	return nil
}

// TextNode represents plain text content
type TextNode struct {
	Content string
}

func (n *TextNode) String() string {
	return fmt.Sprintf("Text(%q)", n.Content)
}

func (n *TextNode) Render(ctx *renderContext, data TemplateData, out *strings.Builder) error {
	out.WriteString(n.Content)
	return nil
}

// ExpressionContentNode represents an expression that should be evaluated and output
type ExpressionContentNode struct {
	Expression *Expression
}

func (n *ExpressionContentNode) String() string {
	return fmt.Sprintf("Expression(%s)", n.Expression)
}

func (n *ExpressionContentNode) Render(ctx *renderContext, data TemplateData, out *strings.Builder) error {
	value, err := n.Expression.Evaluate(ctx, data)
	if err != nil {
		return err
	}
	out.WriteString(escapeXML(FormatValue(value)))
	return nil
}

// renderControlBody renders a list of control structures
func renderControlBody(ctx *renderContext, body []ControlStructure, data TemplateData, out *strings.Builder) error {
	for _, item := range body {
		if err := item.Render(ctx, data, out); err != nil {
			return err
		}
	}
	return nil
}

// ControlParser parses control structures from template tokens
type ControlParser struct {
	tokens []Token
	pos    int
}

// ParseControlStructures parses tokens into control structures
func ParseControlStructures(content string) ([]ControlStructure, error) {
	parser := &ControlParser{tokens: Tokenize(content)}
	body, err := parser.parseBodyUntil()
	if err != nil {
		return nil, err
	}
	if parser.pos < len(parser.tokens) {
		tok := parser.current()
		return nil, NewParseError(fmt.Sprintf("unexpected %s", tok.Type), "{{"+tok.Type.String()+"}}", tok.Pos)
	}
	return body, nil
}

func (p *ControlParser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenText, Pos: -1}
	}
	return p.tokens[p.pos]
}

func (p *ControlParser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *ControlParser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *ControlParser) expression(tok Token, src string) (*Expression, error) {
	e, err := ParseExpression(src)
	if err != nil {
		return nil, NewParseError(fmt.Sprintf("invalid %s expression: %v", tok.Type, err), src, tok.Pos)
	}
	return e, nil
}

// parseBodyUntil parses structures until one of stopTokens or the end of input.
// With no stop tokens it parses the top level and stops at any stray closer.
func (p *ControlParser) parseBodyUntil(stopTokens ...TokenType) ([]ControlStructure, error) {
	var body []ControlStructure

	for !p.atEnd() {
		current := p.current()

		for _, stopType := range stopTokens {
			if current.Type == stopType {
				return body, nil
			}
		}

		switch current.Type {
		case TokenText:
			if current.Value != "" {
				body = append(body, &TextNode{Content: current.Value})
			}
			p.advance()

		case TokenVariable:
			e, err := p.expression(current, current.Value)
			if err != nil {
				return nil, err
			}
			body = append(body, &ExpressionContentNode{Expression: e})
			p.advance()

		case TokenSet:
			node, err := p.parseSet()
			if err != nil {
				return nil, err
			}
			body = append(body, node)

		case TokenIf:
			node, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			body = append(body, node)

		case TokenUnless:
			node, err := p.parseUnless()
			if err != nil {
				return nil, err
			}
			body = append(body, node)

		case TokenFor:
			node, err := p.parseFor()
			if err != nil {
				return nil, err
			}
			body = append(body, node)

		default:
			// else, elsif or end outside the block they belong to
			return body, nil
		}
	}

	return body, nil
}

func (p *ControlParser) expectEnd(opener Token) error {
	if p.current().Type != TokenEnd || p.atEnd() {
		return NewParseError(fmt.Sprintf("missing {{end}} for %s", opener.Type), opener.Value, opener.Pos)
	}
	p.advance()
	return nil
}

func (p *ControlParser) parseIf() (*IfNode, error) {
	opener := p.current()
	condition, err := p.expression(opener, opener.Value)
	if err != nil {
		return nil, err
	}
	p.advance()

	ifNode := &IfNode{Condition: condition}
	if ifNode.ThenBody, err = p.parseBodyUntil(TokenElse, TokenElsif, TokenEnd); err != nil {
		return nil, err
	}

	for !p.atEnd() && p.current().Type == TokenElsif {
		elsif, err := p.parseElsIf()
		if err != nil {
			return nil, err
		}
		ifNode.ElsIfs = append(ifNode.ElsIfs, elsif)
	}

	if !p.atEnd() && p.current().Type == TokenElse {
		p.advance()
		if ifNode.ElseBody, err = p.parseBodyUntil(TokenEnd); err != nil {
			return nil, err
		}
	}

	if err := p.expectEnd(opener); err != nil {
		return nil, err
	}
	return ifNode, nil
}

func (p *ControlParser) parseElsIf() (*ElsIfNode, error) {
	tok := p.current()
	condition, err := p.expression(tok, tok.Value)
	if err != nil {
		return nil, err
	}
	p.advance()

	body, err := p.parseBodyUntil(TokenElse, TokenElsif, TokenEnd)
	if err != nil {
		return nil, err
	}
	return &ElsIfNode{Condition: condition, Body: body}, nil
}

func (p *ControlParser) parseUnless() (*UnlessNode, error) {
	opener := p.current()
	condition, err := p.expression(opener, opener.Value)
	if err != nil {
		return nil, err
	}
	p.advance()

	unlessNode := &UnlessNode{Condition: condition}
	if unlessNode.ThenBody, err = p.parseBodyUntil(TokenElse, TokenEnd); err != nil {
		return nil, err
	}

	if !p.atEnd() && p.current().Type == TokenElse {
		p.advance()
		if unlessNode.ElseBody, err = p.parseBodyUntil(TokenEnd); err != nil {
			return nil, err
		}
	}

	if err := p.expectEnd(opener); err != nil {
		return nil, err
	}
	return unlessNode, nil
}

func (p *ControlParser) parseFor() (*ForNode, error) {
	opener := p.current()
	forNode, err := parseForSyntax(opener)
	if err != nil {
		return nil, err
	}
	p.advance()

	if forNode.Body, err = p.parseBodyUntil(TokenEnd); err != nil {
		return nil, err
	}
	if err := p.expectEnd(opener); err != nil {
		return nil, err
	}
	return forNode, nil
}

var (
	identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	setRegex        = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=([^=][\s\S]*)$`)
)

func (p *ControlParser) parseSet() (*SetNode, error) {
	tok := p.current()
	m := setRegex.FindStringSubmatch(tok.Value)
	if m == nil {
		return nil, NewParseError("invalid set syntax, expected: set name = expression", tok.Value, tok.Pos)
	}
	value, err := p.expression(tok, m[2])
	if err != nil {
		return nil, err
	}
	p.advance()
	return &SetNode{Name: m[1], Value: value}, nil
}

// parseForSyntax parses "var in collection" or "idx, var in collection"
func parseForSyntax(tok Token) (*ForNode, error) {
	forStr := strings.TrimSpace(tok.Value)

	inIndex := strings.Index(forStr, " in ")
	if inIndex == -1 {
		return nil, NewParseError("invalid for loop syntax: missing 'in' keyword", forStr, tok.Pos)
	}

	varsStr := strings.TrimSpace(forStr[:inIndex])
	collectionStr := strings.TrimSpace(forStr[inIndex+4:])

	collection, err := ParseExpression(collectionStr)
	if err != nil {
		return nil, NewParseError(fmt.Sprintf("failed to parse collection expression: %v", err), collectionStr, tok.Pos)
	}

	node := &ForNode{Collection: collection, Variable: varsStr}
	if strings.Contains(varsStr, ",") {
		parts := strings.Split(varsStr, ",")
		if len(parts) != 2 {
			return nil, NewParseError("invalid indexed for loop syntax", varsStr, tok.Pos)
		}
		node.IndexVar = strings.TrimSpace(parts[0])
		node.Variable = strings.TrimSpace(parts[1])
	}

	for _, name := range []string{node.Variable, node.IndexVar} {
		if name != "" && !identifierRegex.MatchString(name) {
			return nil, NewParseError(fmt.Sprintf("invalid loop variable %q", name), forStr, tok.Pos)
		}
	}
	return node, nil
}
