package contentstream

import "bytes"

// RemoveImageOps rewrites a decoded content stream, dropping the painting
// operators for the named XObjects and every inline image block. Removal is
// structural: a `/Name Do` invocation is cut as the name operand plus the Do
// operator, nothing more. Surrounding graphics state operators, including the
// q/Q pair that often brackets an image, are preserved, so operator balance
// and all non-image content survive byte for byte.
//
// names holds the resource names of image XObjects owned by the stream's
// resource dictionary. Form XObject invocations must not be listed here; the
// caller edits a form's own content stream separately.
//
// The removed count covers both Do invocations and inline image blocks.
func RemoveImageOps(content []byte, names map[string]bool) ([]byte, int) {
	toks := Tokenize(content)

	type span struct{ start, end int }
	var cuts []span
	removed := 0

	// Operands accumulate between operators; a Do whose single operand names
	// a listed image is cut together with that operand.
	var operands []int
	for ti, tok := range toks {
		switch tok.Kind {
		case TokOperator:
			if tok.Val == "Do" && len(operands) == 1 {
				if nameTok := toks[operands[0]]; nameTok.Kind == TokName && names[nameTok.Val] {
					cuts = append(cuts, span{nameTok.Start, tok.End})
					removed++
				}
			}
			operands = operands[:0]
		case TokInlineImage:
			cuts = append(cuts, span{tok.Start, tok.End})
			removed++
			operands = operands[:0]
		case TokComment:
			// comments neither operate nor count as operands
		default:
			operands = append(operands, ti)
		}
	}

	if removed == 0 {
		return content, 0
	}

	var out bytes.Buffer
	out.Grow(len(content))
	pos := 0
	for _, c := range cuts {
		out.Write(content[pos:c.start])
		pos = c.end
	}
	out.Write(content[pos:])
	return out.Bytes(), removed
}

// ImageInvocations returns the names painted via Do operators in the stream,
// in order of first appearance. Used to decide which resource entries a page
// actually references.
func ImageInvocations(content []byte) []string {
	toks := Tokenize(content)
	seen := make(map[string]bool)
	var names []string
	var operands []int
	for ti, tok := range toks {
		switch tok.Kind {
		case TokOperator:
			if tok.Val == "Do" && len(operands) == 1 {
				if nameTok := toks[operands[0]]; nameTok.Kind == TokName && !seen[nameTok.Val] {
					seen[nameTok.Val] = true
					names = append(names, nameTok.Val)
				}
			}
			operands = operands[:0]
		case TokInlineImage:
			operands = operands[:0]
		case TokComment:
		default:
			operands = append(operands, ti)
		}
	}
	return names
}
