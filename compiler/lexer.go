package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for slotted source
// ---------------------------------------------------------------------------

// Lexer tokenizes slotted source code.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // current line (1-based)
	lineStart int  // offset of the current line's first byte
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position. Columns count bytes from the
// line start, 1-based.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.pos - l.lineStart + 1,
	}
}

// punct emits a fixed-literal token and advances past it.
func (l *Lexer) punct(t TokenType, lit string, pos Position) Token {
	for range lit {
		l.readChar()
	}
	return Token{Type: t, Literal: lit, Pos: pos}
}

// NextToken returns the next token. End is stamped from the cursor, which
// every scan path leaves just past the lexeme; Literal cannot recover the
// source extent of decoded strings and #names.
func (l *Lexer) NextToken() Token {
	tok := l.scanToken()
	tok.End = l.position()
	return tok
}

// scanToken recognizes one token.
func (l *Lexer) scanToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Literal: "", Pos: pos}

	case l.ch == '(':
		return l.punct(TokenLParen, "(", pos)

	case l.ch == ')':
		return l.punct(TokenRParen, ")", pos)

	case l.ch == '[':
		return l.punct(TokenLBracket, "[", pos)

	case l.ch == ']':
		return l.punct(TokenRBracket, "]", pos)

	case l.ch == '{':
		return l.punct(TokenLBrace, "{", pos)

	case l.ch == '}':
		return l.punct(TokenRBrace, "}", pos)

	case l.ch == ',':
		return l.punct(TokenComma, ",", pos)

	case l.ch == ';':
		return l.punct(TokenSemicolon, ";", pos)

	case l.ch == ':':
		return l.punct(TokenColon, ":", pos)

	case l.ch == '?':
		return l.punct(TokenQuestion, "?", pos)

	case l.ch == '.':
		if isDigit(l.peekChar()) {
			return l.readNumber(pos)
		}
		return l.punct(TokenDot, ".", pos)

	case l.ch == '=':
		switch l.peekChar() {
		case '=':
			return l.punct(TokenEq, "==", pos)
		case '>':
			return l.punct(TokenArrow, "=>", pos)
		}
		return l.punct(TokenAssign, "=", pos)

	case l.ch == '+':
		switch l.peekChar() {
		case '+':
			return l.punct(TokenInc, "++", pos)
		case '=':
			return l.punct(TokenPlusAssign, "+=", pos)
		}
		return l.punct(TokenPlus, "+", pos)

	case l.ch == '-':
		switch l.peekChar() {
		case '-':
			return l.punct(TokenDec, "--", pos)
		case '=':
			return l.punct(TokenMinusAssign, "-=", pos)
		}
		return l.punct(TokenMinus, "-", pos)

	case l.ch == '*':
		if l.peekChar() == '=' {
			return l.punct(TokenStarAssign, "*=", pos)
		}
		return l.punct(TokenStar, "*", pos)

	case l.ch == '/':
		if l.peekChar() == '=' {
			return l.punct(TokenSlashAssign, "/=", pos)
		}
		return l.punct(TokenSlash, "/", pos)

	case l.ch == '%':
		if l.peekChar() == '=' {
			return l.punct(TokenPercentAssign, "%=", pos)
		}
		return l.punct(TokenPercent, "%", pos)

	case l.ch == '<':
		if l.peekChar() == '=' {
			return l.punct(TokenLe, "<=", pos)
		}
		return l.punct(TokenLt, "<", pos)

	case l.ch == '>':
		if l.peekChar() == '=' {
			return l.punct(TokenGe, ">=", pos)
		}
		return l.punct(TokenGt, ">", pos)

	case l.ch == '!':
		if l.peekChar() == '=' {
			return l.punct(TokenNe, "!=", pos)
		}
		return l.punct(TokenBang, "!", pos)

	case l.ch == '&':
		if l.peekChar() == '&' {
			return l.punct(TokenAmpAmp, "&&", pos)
		}
		return l.punct(TokenAmp, "&", pos)

	case l.ch == '|':
		if l.peekChar() == '|' {
			return l.punct(TokenOrOr, "||", pos)
		}
		l.readChar()
		return Token{Type: TokenError, Literal: "unexpected character: |", Pos: pos}

	case l.ch == '#':
		return l.readPrivateName(pos)

	case l.ch == '"' || l.ch == '\'':
		return l.readString(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(pos)

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %c", ch), Pos: pos}
	}
}

// skipWhitespaceAndComments skips whitespace, // line comments and /* */
// block comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar() // consume /
			l.readChar() // consume *
			for l.ch != 0 && !(l.ch == '*' && l.peekChar() == '/') {
				l.readChar()
			}
			if l.ch != 0 {
				l.readChar() // consume *
				l.readChar() // consume /
			}
			continue
		}

		break
	}
}

// readPrivateName reads a #name token.
func (l *Lexer) readPrivateName(pos Position) Token {
	l.readChar() // consume #

	if !(isLetter(l.ch) || l.ch == '_') {
		return Token{Type: TokenError, Literal: "expected name after #", Pos: pos}
	}

	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	return Token{Type: TokenPrivateName, Literal: l.input[start:l.pos], Pos: pos}
}

// readString reads a string literal delimited by " or ', decoding escapes.
func (l *Lexer) readString(pos Position) Token {
	quote := l.ch
	l.readChar() // consume opening quote

	var sb strings.Builder
	for l.ch != 0 && l.ch != quote {
		if l.ch == '\n' {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '\\':
				sb.WriteRune('\\')
			case '"':
				sb.WriteRune('"')
			case '\'':
				sb.WriteRune('\'')
			case '0':
				sb.WriteRune(0)
			case 0:
				return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
			default:
				sb.WriteRune(l.ch)
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}

	if l.ch != quote {
		return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
	}
	l.readChar() // consume closing quote

	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

// readNumber reads a numeric literal: digits with optional fraction and
// exponent.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume .
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifier reads an identifier or reserved word.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos

	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	literal := l.input[start:l.pos]

	if tokType, ok := reservedWords[literal]; ok {
		return Token{Type: tokType, Literal: literal, Pos: pos}
	}

	return Token{Type: TokenIdent, Literal: literal, Pos: pos}
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens from the input, ending with EOF or the first
// error token.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}
