package criteria

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxJSONDepth bounds raw nesting before clause decoding applies
// MaxClauseDepth; each clause level uses up to four JSON levels.
const maxJSONDepth = 4*32 + 8

// jsonNode is a JSON value that keeps object members in document order.
// encoding/json maps lose key order, and key order is evaluation order.
type jsonNode struct {
	kind    nodeKind
	scalar  any // string, json.Number, bool or nil
	members []jsonMember
	elems   []jsonNode
}

type nodeKind int

const (
	scalarNode nodeKind = iota
	objectNode
	arrayNode
)

type jsonMember struct {
	key   string
	value jsonNode
}

func (n jsonNode) kindName() string {
	switch n.kind {
	case objectNode:
		return "object"
	case arrayNode:
		return "array"
	}
	switch n.scalar.(type) {
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "bool"
	default:
		return "null"
	}
}

// member returns the first member named key.
func (n jsonNode) member(key string) (jsonNode, bool) {
	for _, m := range n.members {
		if m.key == key {
			return m.value, true
		}
	}
	return jsonNode{}, false
}

// parseJSON parses exactly one JSON value from data.
func parseJSON(data []byte) (jsonNode, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	n, err := parseValue(dec, 0)
	if err != nil {
		return jsonNode{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return jsonNode{}, fmt.Errorf("unexpected data after top-level value")
	}
	return n, nil
}

func parseValue(dec *json.Decoder, depth int) (jsonNode, error) {
	tok, err := dec.Token()
	if err != nil {
		return jsonNode{}, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return jsonNode{kind: scalarNode, scalar: tok}, nil
	}
	if depth >= maxJSONDepth {
		return jsonNode{}, fmt.Errorf("json nesting exceeds %d levels", maxJSONDepth)
	}

	switch delim {
	case '{':
		n := jsonNode{kind: objectNode}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return jsonNode{}, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return jsonNode{}, fmt.Errorf("object key is %T, want string", keyTok)
			}
			value, err := parseValue(dec, depth+1)
			if err != nil {
				return jsonNode{}, err
			}
			n.members = append(n.members, jsonMember{key: key, value: value})
		}
		if _, err := dec.Token(); err != nil {
			return jsonNode{}, err
		}
		return n, nil
	case '[':
		n := jsonNode{kind: arrayNode}
		for dec.More() {
			elem, err := parseValue(dec, depth+1)
			if err != nil {
				return jsonNode{}, err
			}
			n.elems = append(n.elems, elem)
		}
		if _, err := dec.Token(); err != nil {
			return jsonNode{}, err
		}
		return n, nil
	default:
		return jsonNode{}, fmt.Errorf("unexpected delimiter %q", delim)
	}
}
