package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the slotted-source lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals and names
	TokenNumber      // 42, 3.14, 1.5e10
	TokenString      // "hello", 'hello'
	TokenIdent       // foo, Bar
	TokenPrivateName // #foo (literal holds the name without #)

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenLBrace    // {
	TokenRBrace    // }
	TokenComma     // ,
	TokenSemicolon // ;
	TokenColon     // :
	TokenQuestion  // ?
	TokenDot       // .
	TokenArrow     // =>

	// Operators
	TokenAssign        // =
	TokenPlusAssign    // +=
	TokenMinusAssign   // -=
	TokenStarAssign    // *=
	TokenSlashAssign   // /=
	TokenPercentAssign // %=
	TokenInc           // ++
	TokenDec           // --
	TokenPlus          // +
	TokenMinus         // -
	TokenStar          // *
	TokenSlash         // /
	TokenPercent       // %
	TokenLt            // <
	TokenGt            // >
	TokenLe            // <=
	TokenGe            // >=
	TokenEq            // ==
	TokenNe            // !=
	TokenBang          // !
	TokenAmp           // &  (reification marker)
	TokenAmpAmp        // && (logical and, or doubled marker in prefix position)
	TokenOrOr          // ||

	// Reserved words
	TokenLet
	TokenConst
	TokenClass
	TokenExtends
	TokenStatic
	TokenNew
	TokenThis
	TokenIf
	TokenElse
	TokenWhile
	TokenReturn
	TokenTrue
	TokenFalse
	TokenNull
	TokenUndefined
	TokenExpose
	TokenImport
	TokenAwait
	TokenYield
)

var tokenNames = map[TokenType]string{
	TokenEOF:           "EOF",
	TokenError:         "ERROR",
	TokenNumber:        "NUMBER",
	TokenString:        "STRING",
	TokenIdent:         "IDENT",
	TokenPrivateName:   "PRIVATE",
	TokenLParen:        "(",
	TokenRParen:        ")",
	TokenLBracket:      "[",
	TokenRBracket:      "]",
	TokenLBrace:        "{",
	TokenRBrace:        "}",
	TokenComma:         ",",
	TokenSemicolon:     ";",
	TokenColon:         ":",
	TokenQuestion:      "?",
	TokenDot:           ".",
	TokenArrow:         "=>",
	TokenAssign:        "=",
	TokenPlusAssign:    "+=",
	TokenMinusAssign:   "-=",
	TokenStarAssign:    "*=",
	TokenSlashAssign:   "/=",
	TokenPercentAssign: "%=",
	TokenInc:           "++",
	TokenDec:           "--",
	TokenPlus:          "+",
	TokenMinus:         "-",
	TokenStar:          "*",
	TokenSlash:         "/",
	TokenPercent:       "%",
	TokenLt:            "<",
	TokenGt:            ">",
	TokenLe:            "<=",
	TokenGe:            ">=",
	TokenEq:            "==",
	TokenNe:            "!=",
	TokenBang:          "!",
	TokenAmp:           "&",
	TokenAmpAmp:        "&&",
	TokenOrOr:          "||",
	TokenLet:           "let",
	TokenConst:         "const",
	TokenClass:         "class",
	TokenExtends:       "extends",
	TokenStatic:        "static",
	TokenNew:           "new",
	TokenThis:          "this",
	TokenIf:            "if",
	TokenElse:          "else",
	TokenWhile:         "while",
	TokenReturn:        "return",
	TokenTrue:          "true",
	TokenFalse:         "false",
	TokenNull:          "null",
	TokenUndefined:     "undefined",
	TokenExpose:        "expose",
	TokenImport:        "import",
	TokenAwait:         "await",
	TokenYield:         "yield",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text (decoded for strings and private names)
	Pos     Position // start position
	End     Position // position just past the lexeme in the source
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"let":       TokenLet,
	"const":     TokenConst,
	"class":     TokenClass,
	"extends":   TokenExtends,
	"static":    TokenStatic,
	"new":       TokenNew,
	"this":      TokenThis,
	"if":        TokenIf,
	"else":      TokenElse,
	"while":     TokenWhile,
	"return":    TokenReturn,
	"true":      TokenTrue,
	"false":     TokenFalse,
	"null":      TokenNull,
	"undefined": TokenUndefined,
	"expose":    TokenExpose,
	"import":    TokenImport,
	"await":     TokenAwait,
	"yield":     TokenYield,
}

// assignOps maps compound-assignment tokens to the underlying binary operator.
var assignOps = map[TokenType]string{
	TokenPlusAssign:    "+",
	TokenMinusAssign:   "-",
	TokenStarAssign:    "*",
	TokenSlashAssign:   "/",
	TokenPercentAssign: "%",
}

// IsAssignOp reports whether t is an assignment operator token, simple or
// compound.
func IsAssignOp(t TokenType) bool {
	if t == TokenAssign {
		return true
	}
	_, ok := assignOps[t]
	return ok
}
