package param

import (
	"strings"
	"unicode/utf8"
)

type itemType int

const (
	itemEOF   itemType = iota
	itemText           // literal SQL, copied as is
	itemQuote          // '?' placeholder, value is quoted
	itemBang           // '!' placeholder, value is not quoted
)

type item struct {
	typ itemType
	pos int
	val string
}

const eof = -1

// placeholderLexer splits a query into text and placeholders. Placeholders
// inside quoted literals and backtick identifiers are text, a backslash
// makes the following placeholder character literal, and "!=" is an operator.
type placeholderLexer struct {
	input string
	pos   int
	start int
	atEOF bool
	item  item
	text  strings.Builder
}

type stateFn func(*placeholderLexer) stateFn

func newLexer(input string) *placeholderLexer {
	return &placeholderLexer{input: input}
}

func (l *placeholderLexer) next() rune {
	if l.pos >= len(l.input) {
		l.atEOF = true
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += w
	return r
}

func (l *placeholderLexer) peek() rune {
	if l.pos >= len(l.input) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// keep moves the pending input into the text buffer.
func (l *placeholderLexer) keep() {
	l.text.WriteString(l.input[l.start:l.pos])
	l.start = l.pos
}

func (l *placeholderLexer) emit(t itemType, val string) stateFn {
	l.item = item{typ: t, pos: l.start, val: val}
	l.start = l.pos
	return nil
}

// flush emits buffered text, if any.
func (l *placeholderLexer) flush() bool {
	l.keep()
	if l.text.Len() == 0 {
		return false
	}
	l.item = item{typ: itemText, pos: l.start, val: l.text.String()}
	l.text.Reset()
	return true
}

func (l *placeholderLexer) nextItem() item {
	l.item = item{typ: itemEOF, pos: l.pos}
	state := lexText
	for state != nil {
		state = state(l)
	}
	return l.item
}

func lexText(l *placeholderLexer) stateFn {
	for {
		switch r := l.peek(); r {
		case eof:
			if l.flush() {
				return nil
			}
			l.next()
			return l.emit(itemEOF, "")
		case '?', '!':
			if r == '!' && strings.HasPrefix(l.input[l.pos:], "!=") {
				l.pos += 2
				continue
			}
			if l.flush() {
				return nil
			}
			l.next()
			if r == '?' {
				return l.emit(itemQuote, "?")
			}
			return l.emit(itemBang, "!")
		case '\\':
			l.keep()
			l.next()
			if p := l.peek(); p == '?' || p == '!' {
				// drop the backslash, keep the placeholder character as text
				l.start = l.pos
				l.next()
				l.keep()
				continue
			}
			if p := l.peek(); p != eof {
				l.next()
			}
		case '\'', '"', '`':
			l.next()
			lexQuoted(l, r)
		default:
			l.next()
		}
	}
}

// lexQuoted consumes up to and including the closing quote. Inside single
// and double quotes a backslash escapes the next character; a doubled quote
// stands for itself.
func lexQuoted(l *placeholderLexer, quote rune) {
	for {
		switch r := l.next(); {
		case r == eof:
			return
		case r == '\\' && quote != '`':
			l.next()
		case r == quote:
			if l.peek() == quote {
				l.next()
				continue
			}
			return
		}
	}
}

// scan returns the items of query, up to but excluding EOF.
func scan(query string) []item {
	var items []item
	l := newLexer(query)
	for {
		it := l.nextItem()
		if it.typ == itemEOF {
			return items
		}
		items = append(items, it)
	}
}
