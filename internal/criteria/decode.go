// internal/criteria/decode.go
package criteria

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/apptentive/engagekit/internal/types"
)

/*
 * Criteria decoding.
 *
 * Turns a criteria document from the manifest into a Clause tree. A document
 * is a JSON object decoded to ImplicitAnd; each entry is either a logical
 * node ($and/$or/$not prefixed key) or a field key with a Conditional.
 *
 * A field's value is sniffed in priority order:
 *   (a) literal: scalar or {"_type": ...} complex literal -> implicit $eq
 *   (b) operator object: {"$gte": 3, "$lt": 10}
 *   (c) anything else -> ErrUnrecognizedShape
 *
 * Each attempt either succeeds, reports errWrongShape (try the next one), or
 * reports a content error that aborts decoding immediately.
 *
 * Logical keys match by prefix ("$or_2") because a JSON object cannot repeat
 * a key and a document may need two $or nodes.
 *
 * Every error is a *DecodeError carrying the location and wrapping a
 * sentinel from internal/types.
 */

// errWrongShape signals "not this shape, try the next one". Never escapes Decode.
var errWrongShape = errors.New("wrong shape")

// DecodeError reports where and why a criteria document failed to decode.
type DecodeError struct {
	Location string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode criteria at %s: %v", e.Location, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

const (
	rootLocation   = "criteria"
	literalTypeKey = "_type"
)

var logicalPrefixes = []struct {
	prefix string
	op     LogicalOperator
}{
	{"$and", LogicalAnd},
	{"$not", LogicalNot},
	{"$or", LogicalOr},
}

// Decode parses a criteria document. The empty document {} decodes to an
// ImplicitAnd without subclauses, which is always satisfied.
func Decode(data []byte) (Clause, error) {
	root, err := parseJSON(data)
	if err != nil {
		return nil, &DecodeError{Location: rootLocation, Err: fmt.Errorf("%w: %w", types.ErrUnrecognizedShape, err)}
	}
	if root.kind != objectNode {
		return nil, &DecodeError{Location: rootLocation, Err: fmt.Errorf("%w: criteria is %s, want object", types.ErrUnrecognizedShape, root.kindName())}
	}
	if len(root.members) == 0 {
		return &ImplicitAnd{}, nil
	}
	return decodeDocument(root, rootLocation, 0)
}

// MustDecode is Decode for literals known to be valid. Panics on error.
func MustDecode(data string) Clause {
	c, err := Decode([]byte(data))
	if err != nil {
		panic(err)
	}
	return c
}

// decodeDocument decodes a non-empty object into an ImplicitAnd.
func decodeDocument(n jsonNode, loc string, depth int) (*ImplicitAnd, error) {
	if depth > types.MaxClauseDepth {
		return nil, &DecodeError{Location: loc, Err: types.ErrClauseTooDeep}
	}
	if n.kind != objectNode {
		return nil, &DecodeError{Location: loc, Err: fmt.Errorf("%w: clause is %s, want object", types.ErrUnrecognizedShape, n.kindName())}
	}
	if len(n.members) == 0 {
		return nil, &DecodeError{Location: loc, Err: fmt.Errorf("%w: empty document", types.ErrEmptyClause)}
	}

	clause := &ImplicitAnd{Subclauses: make([]Clause, 0, len(n.members))}
	for _, m := range n.members {
		memberLoc := loc + "[" + strconv.Quote(m.key) + "]"

		var (
			sub Clause
			err error
		)
		if strings.HasPrefix(m.key, "$") {
			op, ok := parseLogicalKey(m.key)
			if !ok {
				return nil, &DecodeError{Location: memberLoc, Err: fmt.Errorf("%w: %q", types.ErrUnknownLogicalOperator, m.key)}
			}
			sub, err = decodeLogical(op, m.value, memberLoc, depth+1)
		} else {
			sub, err = decodeConditional(m.key, m.value, memberLoc)
		}
		if err != nil {
			return nil, err
		}
		clause.Subclauses = append(clause.Subclauses, sub)
	}
	return clause, nil
}

// parseLogicalKey matches $and/$or/$not optionally followed by a non-letter
// suffix ("$or_2", "$and1"), so "$order" is not mistaken for "$or".
func parseLogicalKey(key string) (LogicalOperator, bool) {
	for _, lp := range logicalPrefixes {
		rest, ok := strings.CutPrefix(key, lp.prefix)
		if !ok {
			continue
		}
		if rest == "" {
			return lp.op, true
		}
		if r := []rune(rest)[0]; !unicode.IsLetter(r) {
			return lp.op, true
		}
	}
	return 0, false
}

// decodeLogical accepts an array of documents or a single document.
func decodeLogical(op LogicalOperator, n jsonNode, loc string, depth int) (*Logical, error) {
	var docs []jsonNode
	switch n.kind {
	case arrayNode:
		docs = n.elems
	case objectNode:
		docs = []jsonNode{n}
	default:
		return nil, &DecodeError{Location: loc, Err: fmt.Errorf("%w: %s operand is %s, want array or object", types.ErrUnrecognizedShape, op, n.kindName())}
	}
	if len(docs) == 0 {
		return nil, &DecodeError{Location: loc, Err: fmt.Errorf("%w: %s has no subclauses", types.ErrEmptyClause, op)}
	}

	clause := &Logical{Operator: op, Subclauses: make([]Clause, 0, len(docs))}
	for i, doc := range docs {
		docLoc := loc
		if n.kind == arrayNode {
			docLoc = loc + "[" + strconv.Itoa(i) + "]"
		}
		sub, err := decodeDocument(doc, docLoc, depth)
		if err != nil {
			return nil, err
		}
		clause.Subclauses = append(clause.Subclauses, sub)
	}
	return clause, nil
}

// decodeConditional sniffs the value shape under a field key.
func decodeConditional(key string, n jsonNode, loc string) (*Conditional, error) {
	field, err := ParseFieldPath(key)
	if err != nil {
		return nil, &DecodeError{Location: loc, Err: err}
	}

	lit, err := decodeLiteral(n, loc)
	if err == nil {
		return &Conditional{Field: field, Tests: []ConditionalTest{{Operator: OpEquals, Parameter: lit}}}, nil
	}
	if !errors.Is(err, errWrongShape) {
		return nil, err
	}

	tests, err := decodeOperatorObject(n, loc)
	if err == nil {
		return &Conditional{Field: field, Tests: tests}, nil
	}
	if !errors.Is(err, errWrongShape) {
		return nil, err
	}

	return nil, &DecodeError{Location: loc, Err: fmt.Errorf("%w: field value is %s without operator or literal type keys", types.ErrUnrecognizedShape, n.kindName())}
}

// decodeOperatorObject decodes {"$op": literal, ...}. An object without any
// $-prefixed key is the wrong shape; a partially operator-keyed object is a
// content error.
func decodeOperatorObject(n jsonNode, loc string) ([]ConditionalTest, error) {
	if n.kind != objectNode {
		return nil, errWrongShape
	}
	if len(n.members) == 0 {
		return nil, &DecodeError{Location: loc, Err: fmt.Errorf("%w: no operators", types.ErrEmptyClause)}
	}

	hasOperatorKey := false
	for _, m := range n.members {
		if strings.HasPrefix(m.key, "$") {
			hasOperatorKey = true
			break
		}
	}
	if !hasOperatorKey {
		return nil, errWrongShape
	}

	tests := make([]ConditionalTest, 0, len(n.members))
	for _, m := range n.members {
		memberLoc := loc + "[" + strconv.Quote(m.key) + "]"
		if !strings.HasPrefix(m.key, "$") {
			return nil, &DecodeError{Location: memberLoc, Err: fmt.Errorf("%w: %q mixed with operator keys", types.ErrUnrecognizedShape, m.key)}
		}
		op, ok := ParseConditionalOperator(m.key)
		if !ok {
			return nil, &DecodeError{Location: memberLoc, Err: fmt.Errorf("%w: %q", types.ErrUnknownOperator, m.key)}
		}
		param, err := decodeLiteral(m.value, memberLoc)
		if errors.Is(err, errWrongShape) {
			return nil, &DecodeError{Location: memberLoc, Err: fmt.Errorf("%w: %s parameter is %s, want literal", types.ErrMalformedLiteral, op, m.value.kindName())}
		}
		if err != nil {
			return nil, err
		}
		tests = append(tests, ConditionalTest{Operator: op, Parameter: param})
	}
	return tests, nil
}

// decodeLiteral decodes a plain scalar or a complex literal.
// Objects without _type and arrays are the wrong shape.
func decodeLiteral(n jsonNode, loc string) (Value, error) {
	switch n.kind {
	case scalarNode:
		return decodeScalar(n.scalar, loc)
	case objectNode:
		if _, ok := n.member(literalTypeKey); !ok {
			return nil, errWrongShape
		}
		return decodeComplexLiteral(n, loc)
	default:
		return nil, errWrongShape
	}
}

func decodeScalar(v any, loc string) (Value, error) {
	switch s := v.(type) {
	case nil:
		return Absent{}, nil
	case bool:
		return Bool(s), nil
	case string:
		return Text(s), nil
	case json.Number:
		return decodeNumber(s, loc)
	default:
		return nil, errWrongShape
	}
}

// decodeNumber keeps integral literals as Integer so Int/Int comparisons stay exact.
func decodeNumber(n json.Number, loc string) (Value, error) {
	if i, err := n.Int64(); err == nil {
		return Integer(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, &DecodeError{Location: loc, Err: fmt.Errorf("%w: number %q", types.ErrMalformedLiteral, n.String())}
	}
	return Number(f), nil
}

// decodeComplexLiteral decodes {"_type":"datetime","sec":N} and
// {"_type":"version","version":"1.2.3"}.
func decodeComplexLiteral(n jsonNode, loc string) (Value, error) {
	typeNode, _ := n.member(literalTypeKey)
	typeName, ok := typeNode.scalar.(string)
	if typeNode.kind != scalarNode || !ok {
		return nil, &DecodeError{Location: loc, Err: fmt.Errorf("%w: _type is %s, want string", types.ErrMalformedLiteral, typeNode.kindName())}
	}

	switch typeName {
	case "datetime":
		sec, ok := n.member("sec")
		num, isNum := sec.scalar.(json.Number)
		if !ok || sec.kind != scalarNode || !isNum {
			return nil, &DecodeError{Location: loc, Err: fmt.Errorf("%w: datetime requires numeric sec", types.ErrMalformedLiteral)}
		}
		f, err := num.Float64()
		if err != nil {
			return nil, &DecodeError{Location: loc, Err: fmt.Errorf("%w: datetime sec %q", types.ErrMalformedLiteral, num.String())}
		}
		instant, ok := InstantFromSeconds(f)
		if !ok {
			return nil, &DecodeError{Location: loc, Err: fmt.Errorf("%w: datetime sec %s out of range", types.ErrMalformedLiteral, num.String())}
		}
		return instant, nil
	case "version":
		ver, ok := n.member("version")
		s, isStr := ver.scalar.(string)
		if !ok || ver.kind != scalarNode || !isStr {
			return nil, &DecodeError{Location: loc, Err: fmt.Errorf("%w: version requires string version", types.ErrMalformedLiteral)}
		}
		v, err := ParseVersion(s)
		if err != nil {
			return nil, &DecodeError{Location: loc, Err: fmt.Errorf("%w: %w", types.ErrMalformedLiteral, err)}
		}
		return v, nil
	default:
		return nil, &DecodeError{Location: loc, Err: fmt.Errorf("%w: %q", types.ErrUnknownLiteralType, typeName)}
	}
}
