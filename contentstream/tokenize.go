// Package contentstream tokenizes PDF content streams and rewrites them at the
// operator level. Tokens carry their byte spans in the source, so an edited
// stream is reassembled from original bytes and every retained operator stays
// byte-identical and in order.
package contentstream

// TokenKind classifies a content stream token.
type TokenKind int

const (
	TokNumber TokenKind = iota
	TokName
	TokString
	TokHexString
	TokArrayOpen
	TokArrayClose
	TokDictOpen
	TokDictClose
	TokKeyword // true, false, null
	TokOperator
	TokComment
	TokInlineImage // one BI ... ID ... EI unit
)

// Token is a single lexical unit with its location in the source stream.
type Token struct {
	Kind  TokenKind
	Val   string // decoded text for names and operators, raw text otherwise
	Start int
	End   int // exclusive
}

func isWhitespace(b byte) bool {
	switch b {
	case 0x00, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(b byte) bool { return !isWhitespace(b) && !isDelimiter(b) }

// Tokenize splits src into tokens. Inline images are returned as a single
// token spanning BI through EI. Malformed trailing constructs produce a token
// covering the remainder of the stream rather than an error; editing is
// best-effort and unknown bytes are passed through untouched.
func Tokenize(src []byte) []Token {
	var toks []Token
	i := 0
	for i < len(src) {
		b := src[i]
		switch {
		case isWhitespace(b):
			i++
		case b == '%':
			start := i
			for i < len(src) && src[i] != '\n' && src[i] != '\r' {
				i++
			}
			toks = append(toks, Token{TokComment, string(src[start:i]), start, i})
		case b == '(':
			start := i
			i = scanStringLiteral(src, i)
			toks = append(toks, Token{TokString, string(src[start:i]), start, i})
		case b == '<':
			start := i
			if i+1 < len(src) && src[i+1] == '<' {
				i += 2
				toks = append(toks, Token{TokDictOpen, "<<", start, i})
				break
			}
			i++
			for i < len(src) && src[i] != '>' {
				i++
			}
			if i < len(src) {
				i++
			}
			toks = append(toks, Token{TokHexString, string(src[start:i]), start, i})
		case b == '>':
			start := i
			if i+1 < len(src) && src[i+1] == '>' {
				i += 2
				toks = append(toks, Token{TokDictClose, ">>", start, i})
				break
			}
			// stray '>', pass through as operator-ish token
			i++
			toks = append(toks, Token{TokOperator, ">", start, i})
		case b == '[':
			toks = append(toks, Token{TokArrayOpen, "[", i, i + 1})
			i++
		case b == ']':
			toks = append(toks, Token{TokArrayClose, "]", i, i + 1})
			i++
		case b == '{' || b == '}':
			toks = append(toks, Token{TokOperator, string(b), i, i + 1})
			i++
		case b == '/':
			start := i
			i++
			for i < len(src) && isRegular(src[i]) {
				i++
			}
			toks = append(toks, Token{TokName, string(src[start+1 : i]), start, i})
		case b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9'):
			start := i
			for i < len(src) && isRegular(src[i]) {
				i++
			}
			toks = append(toks, Token{TokNumber, string(src[start:i]), start, i})
		default:
			start := i
			for i < len(src) && isRegular(src[i]) {
				i++
			}
			word := string(src[start:i])
			switch word {
			case "true", "false", "null":
				toks = append(toks, Token{TokKeyword, word, start, i})
			case "BI":
				end := scanInlineImage(src, i)
				toks = append(toks, Token{TokInlineImage, "", start, end})
				i = end
			default:
				toks = append(toks, Token{TokOperator, word, start, i})
			}
		}
	}
	return toks
}

// scanStringLiteral consumes a parenthesized string starting at i, honoring
// nested parentheses and backslash escapes, and returns the index past the
// closing paren.
func scanStringLiteral(src []byte, i int) int {
	depth := 0
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
		i++
	}
	return i
}

// scanInlineImage consumes the remainder of a BI ... ID <data> EI block.
// i points just past "BI". The returned index is past "EI", or the end of the
// stream when no terminator is found.
func scanInlineImage(src []byte, i int) int {
	// Skip the parameter dictionary up to the ID operator. Parameters are
	// names and simple values; scanning for a bare "ID" word is sufficient
	// because "ID" cannot appear as a name token without a leading slash.
	for i < len(src) {
		if isWhitespace(src[i]) {
			i++
			continue
		}
		if src[i] == '/' {
			i++
			for i < len(src) && isRegular(src[i]) {
				i++
			}
			continue
		}
		if src[i] == '[' || src[i] == ']' {
			i++
			continue
		}
		if src[i] == '(' {
			i = scanStringLiteral(src, i)
			continue
		}
		if src[i] == '<' {
			i++
			for i < len(src) && src[i] != '>' {
				i++
			}
			if i < len(src) {
				i++
			}
			continue
		}
		start := i
		for i < len(src) && isRegular(src[i]) {
			i++
		}
		if string(src[start:i]) == "ID" {
			// One whitespace byte separates ID from the data.
			if i < len(src) && isWhitespace(src[i]) {
				i++
			}
			return scanInlineImageData(src, i)
		}
		if start == i {
			i++ // never stall on an unexpected delimiter
		}
	}
	return i
}

func scanInlineImageData(src []byte, i int) int {
	for ; i+1 < len(src); i++ {
		if src[i] != 'E' || src[i+1] != 'I' {
			continue
		}
		if i > 0 && !isWhitespace(src[i-1]) {
			continue
		}
		end := i + 2
		if end == len(src) || isWhitespace(src[end]) || isDelimiter(src[end]) {
			return end
		}
	}
	return len(src)
}
