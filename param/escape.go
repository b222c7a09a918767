package param

// EscapeBackslash escapes text the way MySQL does by default: NUL, newline,
// carriage return, backslash, both quotes and Ctrl-Z get a backslash.
func EscapeBackslash(text string) string {
	buf := make([]byte, 0, len(text)*2)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case 0:
			buf = append(buf, '\\', '0')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\x1a':
			buf = append(buf, '\\', 'Z')
		case '\'', '"', '\\':
			buf = append(buf, '\\', c)
		default:
			buf = append(buf, c)
		}
	}
	return string(buf)
}

// EscapeQuotes doubles single quotes, the standard SQL rule (and MySQL's
// under NO_BACKSLASH_ESCAPES).
func EscapeQuotes(text string) string {
	buf := make([]byte, 0, len(text)*2)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\'' {
			buf = append(buf, '\'')
		}
		buf = append(buf, c)
	}
	return string(buf)
}
