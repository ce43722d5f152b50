package docxcod

import (
	"regexp"
	"strings"
)

// TokenType represents the type of a template token
type TokenType int

const (
	TokenText TokenType = iota
	TokenVariable
	TokenIf
	TokenElse
	TokenElsif
	TokenUnless
	TokenFor
	TokenEnd
	TokenSet
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "text"
	case TokenVariable:
		return "expression"
	case TokenIf:
		return "if"
	case TokenElse:
		return "else"
	case TokenElsif:
		return "elsif"
	case TokenUnless:
		return "unless"
	case TokenFor:
		return "for"
	case TokenEnd:
		return "end"
	case TokenSet:
		return "set"
	default:
		return "unknown"
	}
}

// Token represents a parsed template token
type Token struct {
	Type  TokenType
	Value string
	// Pos is the byte offset of the token in the template source.
	Pos int
}

var (
	// Regular expression to match template tokens
	tokenRegex = regexp.MustCompile(`\{\{([^}]*)\}\}`)
)

// Tokenize parses a template string into tokens
func Tokenize(input string) []Token {
	var tokens []Token
	lastEnd := 0

	logger := GetLogger()
	if logger.IsDebugMode() {
		logger.WithField("input_length", len(input)).Debug("Starting tokenization")
	}

	for _, match := range tokenRegex.FindAllStringSubmatchIndex(input, -1) {
		if match[0] > lastEnd {
			tokens = append(tokens, Token{
				Type:  TokenText,
				Value: input[lastEnd:match[0]],
				Pos:   lastEnd,
			})
		}

		content := strings.TrimSpace(input[match[2]:match[3]])
		if content == "" {
			// "{{}}" and "{{  }}" are literal text
			tokens = append(tokens, Token{
				Type:  TokenText,
				Value: input[match[0]:match[1]],
				Pos:   match[0],
			})
		} else {
			token := parseToken(content)
			token.Pos = match[0]
			tokens = append(tokens, token)
		}

		lastEnd = match[1]
	}

	if lastEnd < len(input) {
		tokens = append(tokens, Token{
			Type:  TokenText,
			Value: input[lastEnd:],
			Pos:   lastEnd,
		})
	}

	if logger.IsDebugMode() {
		logger.WithField("token_count", len(tokens)).Debug("Tokenization complete")
	}

	return tokens
}

// parseToken determines the type of token from its content
func parseToken(content string) Token {
	parts := strings.Fields(content)
	keyword := parts[0]
	rest := strings.TrimSpace(strings.TrimPrefix(content, keyword))

	switch keyword {
	case "if":
		return Token{Type: TokenIf, Value: rest}
	case "else":
		return Token{Type: TokenElse}
	case "elsif", "elseif", "elif":
		return Token{Type: TokenElsif, Value: rest}
	case "unless":
		return Token{Type: TokenUnless, Value: rest}
	case "for":
		return Token{Type: TokenFor, Value: rest}
	case "end":
		return Token{Type: TokenEnd}
	case "set":
		return Token{Type: TokenSet, Value: rest}
	default:
		return Token{Type: TokenVariable, Value: content}
	}
}

// FindTemplateTokens finds all template tokens in a string
func FindTemplateTokens(input string) []string {
	matches := tokenRegex.FindAllString(input, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}
