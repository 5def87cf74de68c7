// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package syntax

// A lexical scanner for Happy.
//
// The scanner has three modes, kept on a stack. In code mode it
// produces the usual tokens. After '<|' it switches to template mode,
// in which everything up to '$' or '|>' is a single TEXT token.
// A '$' in template mode opens an island of code that the next
// '$' closes; islands may contain nested templates.

import (
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// A Token represents a Happy lexical token.
type Token int8

const (
	ILLEGAL Token = iota
	EOF

	IDENT  // x
	INT    // 123
	FLOAT  // 1.23e45
	STRING // "foo" or 'foo'
	TEXT   // verbatim template text

	// Punctuation
	PLUS       // +
	MINUS      // -
	STAR       // *
	SLASH      // /
	PERCENT    // %
	AMP        // &
	PIPE       // |
	CIRCUMFLEX // ^
	BANG       // !
	DOT        // .
	COMMA      // ,
	EQ         // =
	SEMI       // ;
	COLON      // :
	LPAREN     // (
	RPAREN     // )
	LBRACK     // [
	RBRACK     // ]
	LBRACE     // {
	RBRACE     // }
	LT         // <
	GT         // >
	GE         // >=
	LE         // <=
	EQL        // ==
	NEQ        // !=
	ANDAND     // &&
	OROR       // ||
	TEMPLATE   // <|
	ENDTMPL    // |>
	DOLLAR     // $

	// Keywords
	BETWEEN
	BREAK
	CASE
	CONTINUE
	DEF
	DEFAULT
	ELSE
	FALSE
	FOR
	FUNCTION
	IF
	IN
	LOAD
	NEW
	NULL
	OUT
	RETURN
	SWITCH
	TRUE
	WHERE
	WHILE

	maxToken
)

func (tok Token) String() string { return tokenNames[tok] }

// GoString is like String but quotes punctuation tokens.
// Use Sprintf("%#v", tok) when constructing error messages.
func (tok Token) GoString() string {
	if tok >= PLUS && tok <= WHILE {
		return "'" + tokenNames[tok] + "'"
	}
	return tokenNames[tok]
}

var tokenNames = [...]string{
	ILLEGAL:    "illegal token",
	EOF:        "end of file",
	IDENT:      "identifier",
	INT:        "int literal",
	FLOAT:      "float literal",
	STRING:     "string literal",
	TEXT:       "template text",
	PLUS:       "+",
	MINUS:      "-",
	STAR:       "*",
	SLASH:      "/",
	PERCENT:    "%",
	AMP:        "&",
	PIPE:       "|",
	CIRCUMFLEX: "^",
	BANG:       "!",
	DOT:        ".",
	COMMA:      ",",
	EQ:         "=",
	SEMI:       ";",
	COLON:      ":",
	LPAREN:     "(",
	RPAREN:     ")",
	LBRACK:     "[",
	RBRACK:     "]",
	LBRACE:     "{",
	RBRACE:     "}",
	LT:         "<",
	GT:         ">",
	GE:         ">=",
	LE:         "<=",
	EQL:        "==",
	NEQ:        "!=",
	ANDAND:     "&&",
	OROR:       "||",
	TEMPLATE:   "<|",
	ENDTMPL:    "|>",
	DOLLAR:     "$",
	BETWEEN:    "between",
	BREAK:      "break",
	CASE:       "case",
	CONTINUE:   "continue",
	DEF:        "def",
	DEFAULT:    "default",
	ELSE:       "else",
	FALSE:      "false",
	FOR:        "for",
	FUNCTION:   "function",
	IF:         "if",
	IN:         "in",
	LOAD:       "load",
	NEW:        "new",
	NULL:       "null",
	OUT:        "out",
	RETURN:     "return",
	SWITCH:     "switch",
	TRUE:       "true",
	WHERE:      "where",
	WHILE:      "while",
}

var keywordToken = map[string]Token{}

func init() {
	for tok := BETWEEN; tok <= WHILE; tok++ {
		keywordToken[tokenNames[tok]] = tok
	}
}

// A Position describes the location of a rune of input.
type Position struct {
	file *string // filename (indirect for compactness)
	Line int32   // 1-based line number; 0 if line unknown
	Col  int32   // 1-based column (rune) number; 0 if column unknown
}

// IsValid reports whether the position is valid.
func (p Position) IsValid() bool { return p.file != nil && p.Line > 0 }

// Filename returns the name of the file containing this position.
func (p Position) Filename() string {
	if p.file != nil {
		return *p.file
	}
	return "<invalid>"
}

// MakePosition returns position with the specified components.
func MakePosition(file *string, line, col int32) Position { return Position{file, line, col} }

// add returns the position at the end of s, assuming it starts at p.
func (p Position) add(s string) Position {
	if n := strings.Count(s, "\n"); n > 0 {
		p.Line += int32(n)
		s = s[strings.LastIndex(s, "\n")+1:]
		p.Col = 1
	}
	p.Col += int32(utf8.RuneCountInString(s))
	return p
}

func (p Position) String() string {
	file := p.Filename()
	if p.Line > 0 {
		if p.Col > 0 {
			return fmt.Sprintf("%s:%d:%d", file, p.Line, p.Col)
		}
		return fmt.Sprintf("%s:%d", file, p.Line)
	}
	return file
}

func (p Position) isBefore(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Col < q.Col
}

// ErrEOF is the cause of a parse Error reported because the input
// ended before a complete module was read. Clients such as the REPL
// test for it with errors.Is to decide whether to read more input.
var ErrEOF = errors.New("unexpected end of input")

// An Error describes the nature and position of a scanner or parser error.
type Error struct {
	Pos Position
	Msg string
	eof bool
}

func (e Error) Error() string { return e.Pos.String() + ": " + e.Msg }

func (e Error) Unwrap() error {
	if e.eof {
		return ErrEOF
	}
	return nil
}

type mode uint8

const (
	codeMode mode = iota
	templateMode
	islandMode
)

// A tokenValue holds the value of the current token.
type tokenValue struct {
	raw    string   // raw text of token
	int    int64    // decoded int
	float  float64  // decoded float
	string string   // decoded string or template text
	pos    Position // start position of token
}

type scanner struct {
	rest  []byte   // rest of input
	token []byte   // token being scanned
	pos   Position // current input position
	modes []mode
}

func newScanner(filename string, src interface{}) (*scanner, error) {
	data, err := readSource(filename, src)
	if err != nil {
		return nil, err
	}
	return &scanner{
		rest:  data,
		pos:   MakePosition(&filename, 1, 1),
		modes: []mode{codeMode},
	}, nil
}

func readSource(filename string, src interface{}) ([]byte, error) {
	switch src := src.(type) {
	case string:
		return []byte(src), nil
	case []byte:
		return src, nil
	case io.Reader:
		data, err := ioutil.ReadAll(src)
		if err != nil {
			err = &Error{Pos: MakePosition(&filename, 1, 1), Msg: err.Error()}
			return nil, err
		}
		return data, nil
	case nil:
		return ioutil.ReadFile(filename)
	default:
		return nil, fmt.Errorf("invalid source: %T", src)
	}
}

// error aborts the scan with a positioned error.
func (sc *scanner) error(pos Position, s string) {
	panic(Error{Pos: pos, Msg: s})
}

// eofError aborts the scan because input ended too soon.
func (sc *scanner) eofError(pos Position, s string) {
	panic(Error{Pos: pos, Msg: s, eof: true})
}

func (sc *scanner) errorf(pos Position, format string, args ...interface{}) {
	sc.error(pos, fmt.Sprintf(format, args...))
}

func (sc *scanner) recover(err *error) {
	switch e := recover().(type) {
	case nil:
		return
	case Error:
		*err = e
	default:
		panic(e)
	}
}

func (sc *scanner) mode() mode { return sc.modes[len(sc.modes)-1] }

func (sc *scanner) push(m mode) { sc.modes = append(sc.modes, m) }

func (sc *scanner) pop() { sc.modes = sc.modes[:len(sc.modes)-1] }

// eof reports whether the input has reached end of file.
func (sc *scanner) eof() bool { return len(sc.rest) == 0 }

// peekRune returns the next rune in the input without consuming it.
func (sc *scanner) peekRune() rune {
	if len(sc.rest) == 0 {
		return 0
	}
	if b := sc.rest[0]; b < utf8.RuneSelf {
		return rune(b)
	}
	r, _ := utf8.DecodeRune(sc.rest)
	return r
}

// readRune consumes and returns the next rune in the input.
func (sc *scanner) readRune() rune {
	if len(sc.rest) == 0 {
		sc.eofError(sc.pos, "internal scanner error: readRune at EOF")
	}
	var r rune
	var n int
	if b := sc.rest[0]; b < utf8.RuneSelf {
		r, n = rune(b), 1
	} else {
		r, n = utf8.DecodeRune(sc.rest)
		if r == utf8.RuneError && n == 1 {
			sc.error(sc.pos, "invalid UTF-8 encoding")
		}
	}
	sc.rest = sc.rest[n:]
	if r == '\n' {
		sc.pos.Line++
		sc.pos.Col = 1
	} else {
		sc.pos.Col++
	}
	return r
}

// hasPrefix reports whether the remaining input starts with s.
func (sc *scanner) hasPrefix(s string) bool {
	return len(sc.rest) >= len(s) && string(sc.rest[:len(s)]) == s
}

func (sc *scanner) startToken(val *tokenValue) {
	sc.token = sc.rest
	val.raw = ""
	val.pos = sc.pos
}

func (sc *scanner) endToken(val *tokenValue) {
	if val.raw == "" {
		val.raw = string(sc.token[:len(sc.token)-len(sc.rest)])
	}
}

// nextToken is called by the parser to obtain the next input token.
// It returns the token value and sets val to the data associated with
// the token.
func (sc *scanner) nextToken(val *tokenValue) Token {
	if sc.mode() == templateMode {
		return sc.scanTemplate(val)
	}

	sc.skipSpace()
	sc.startToken(val)
	if sc.eof() {
		return EOF
	}

	c := sc.peekRune()
	switch {
	case isIdentStart(c):
		for isIdent(sc.peekRune()) {
			sc.readRune()
		}
		sc.endToken(val)
		if tok, ok := keywordToken[val.raw]; ok {
			return tok
		}
		return IDENT
	case isDigit(c):
		return sc.scanNumber(val)
	case c == '"' || c == '\'':
		return sc.scanString(val, c)
	}

	sc.readRune()
	switch c {
	case '$':
		if sc.mode() != islandMode {
			sc.error(val.pos, "unexpected '$' outside template")
		}
		sc.pop()
		return DOLLAR
	case '<':
		if sc.peekRune() == '|' {
			sc.readRune()
			sc.push(templateMode)
			return TEMPLATE
		}
		if sc.peekRune() == '=' {
			sc.readRune()
			return LE
		}
		return LT
	case '>':
		if sc.peekRune() == '=' {
			sc.readRune()
			return GE
		}
		return GT
	case '=':
		if sc.peekRune() == '=' {
			sc.readRune()
			return EQL
		}
		return EQ
	case '!':
		if sc.peekRune() == '=' {
			sc.readRune()
			return NEQ
		}
		return BANG
	case '&':
		if sc.peekRune() == '&' {
			sc.readRune()
			return ANDAND
		}
		return AMP
	case '|':
		if sc.peekRune() == '|' {
			sc.readRune()
			return OROR
		}
		return PIPE
	case '+':
		return PLUS
	case '-':
		return MINUS
	case '*':
		return STAR
	case '/':
		return SLASH
	case '%':
		return PERCENT
	case '^':
		return CIRCUMFLEX
	case '.':
		return DOT
	case ',':
		return COMMA
	case ';':
		return SEMI
	case ':':
		return COLON
	case '(':
		return LPAREN
	case ')':
		return RPAREN
	case '[':
		return LBRACK
	case ']':
		return RBRACK
	case '{':
		return LBRACE
	case '}':
		return RBRACE
	}
	sc.errorf(val.pos, "unexpected input character %#q", c)
	panic("unreachable")
}

// skipSpace skips white space and comments.
func (sc *scanner) skipSpace() {
	for !sc.eof() {
		switch c := sc.peekRune(); {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			sc.readRune()
		case sc.hasPrefix("//"):
			for !sc.eof() && sc.peekRune() != '\n' {
				sc.readRune()
			}
		case sc.hasPrefix("/*"):
			pos := sc.pos
			sc.readRune()
			sc.readRune()
			for !sc.hasPrefix("*/") {
				if sc.eof() {
					sc.eofError(pos, "unterminated comment")
				}
				sc.readRune()
			}
			sc.readRune()
			sc.readRune()
		default:
			return
		}
	}
}

// scanTemplate scans a token in template mode: a run of text,
// the '$' that opens an island, or the closing '|>'.
func (sc *scanner) scanTemplate(val *tokenValue) Token {
	sc.startToken(val)
	var buf strings.Builder
	for {
		switch {
		case sc.eof():
			if buf.Len() > 0 {
				break
			}
			return EOF
		case sc.hasPrefix("$$"):
			sc.readRune()
			sc.readRune()
			buf.WriteByte('$')
			continue
		case sc.hasPrefix("$"):
			if buf.Len() > 0 {
				break
			}
			sc.readRune()
			sc.push(islandMode)
			sc.endToken(val)
			return DOLLAR
		case sc.hasPrefix("|>"):
			if buf.Len() > 0 {
				break
			}
			sc.readRune()
			sc.readRune()
			sc.pop()
			sc.endToken(val)
			return ENDTMPL
		default:
			buf.WriteRune(sc.readRune())
			continue
		}
		break
	}
	sc.endToken(val)
	val.string = buf.String()
	return TEXT
}

func (sc *scanner) scanNumber(val *tokenValue) Token {
	isFloat := false
	for isDigit(sc.peekRune()) {
		sc.readRune()
	}
	if sc.peekRune() == '.' && len(sc.rest) > 1 && isDigit(rune(sc.rest[1])) {
		isFloat = true
		sc.readRune()
		for isDigit(sc.peekRune()) {
			sc.readRune()
		}
	}
	if c := sc.peekRune(); c == 'e' || c == 'E' {
		isFloat = true
		sc.readRune()
		if c := sc.peekRune(); c == '+' || c == '-' {
			sc.readRune()
		}
		if !isDigit(sc.peekRune()) {
			sc.error(sc.pos, "invalid float literal")
		}
		for isDigit(sc.peekRune()) {
			sc.readRune()
		}
	}
	sc.endToken(val)
	if isFloat {
		f, err := strconv.ParseFloat(val.raw, 64)
		if err != nil {
			sc.error(val.pos, "invalid float literal")
		}
		val.float = f
		return FLOAT
	}
	i, err := strconv.ParseInt(val.raw, 10, 64)
	if err != nil {
		sc.errorf(val.pos, "int literal %s out of range", val.raw)
	}
	val.int = i
	return INT
}

func (sc *scanner) scanString(val *tokenValue, quote rune) Token {
	sc.readRune()
	for {
		if sc.eof() {
			sc.eofError(val.pos, "unexpected EOF in string")
		}
		c := sc.readRune()
		if c == quote {
			break
		}
		if c == '\n' {
			sc.error(val.pos, "unexpected newline in string")
		}
		if c == '\\' {
			if sc.eof() {
				sc.eofError(val.pos, "unexpected EOF in string")
			}
			sc.readRune()
		}
	}
	sc.endToken(val)
	s, err := unquote(val.raw)
	if err != nil {
		sc.error(val.pos, err.Error())
	}
	val.string = s
	return STRING
}

// unquote decodes a single- or double-quoted Happy string literal.
func unquote(quoted string) (string, error) {
	if len(quoted) < 2 || quoted[0] != quoted[len(quoted)-1] || (quoted[0] != '"' && quoted[0] != '\'') {
		return "", fmt.Errorf("invalid string literal %s", quoted)
	}
	quote := quoted[0]
	s := quoted[1 : len(quoted)-1]
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var buf strings.Builder
	for len(s) > 0 {
		c, multibyte, tail, err := strconv.UnquoteChar(s, quote)
		if err != nil {
			if strings.HasPrefix(s, `\$`) {
				buf.WriteByte('$')
				s = s[2:]
				continue
			}
			return "", fmt.Errorf("invalid escape sequence in %s", quoted)
		}
		if c < utf8.RuneSelf || multibyte {
			buf.WriteRune(c)
		} else {
			buf.WriteByte(byte(c))
		}
		s = tail
	}
	return buf.String(), nil
}

func isDigit(c rune) bool { return '0' <= c && c <= '9' }

func isIdentStart(c rune) bool {
	return 'a' <= c && c <= 'z' ||
		'A' <= c && c <= 'Z' ||
		c == '_' ||
		c >= 0x80 && unicode.IsLetter(c)
}

func isIdent(c rune) bool {
	return isDigit(c) || isIdentStart(c)
}
