// internal/criteria/clause.go
package criteria

import (
	"strings"
)

/*
 * Clause tree.
 *
 * Three node kinds, built once by Decode and immutable afterwards:
 *   - ImplicitAnd: the entries of one criteria document, all must hold
 *   - Logical: $and / $or / $not over nested documents
 *   - Conditional: one field path with one or more operator tests
 *
 * Evaluation order is document order and short-circuits left to right. State
 * providers and trace sinks may observe resolution order, so it is part of
 * the contract.
 *
 * $not is NAND over its subclauses: a $not node wrapping [A, B] is true
 * unless both A and B hold. A single-subclause $not is plain negation.
 */

// Clause is a node of a decoded criteria tree.
type Clause interface {
	// IsSatisfied evaluates the clause within ev. Never panics on bad state.
	IsSatisfied(ev *Evaluation) bool
	String() string
	isClause()
}

// ImplicitAnd holds the entries of one criteria document.
// Empty only at the root of an invocation whose criteria document is {}.
type ImplicitAnd struct {
	Subclauses []Clause
}

// Logical applies a logical operator to nested documents.
type Logical struct {
	Operator   LogicalOperator
	Subclauses []Clause
}

// Conditional tests one field against one or more operators.
type Conditional struct {
	Field FieldPath
	Tests []ConditionalTest
}

// ConditionalTest is one operator key under a field.
type ConditionalTest struct {
	Operator  ConditionalOperator
	Parameter Value
}

func (*ImplicitAnd) isClause() {}
func (*Logical) isClause()     {}
func (*Conditional) isClause() {}

// IsSatisfied reports whether every subclause holds.
func (c *ImplicitAnd) IsSatisfied(ev *Evaluation) bool {
	if len(c.Subclauses) == 0 {
		ev.tracef("no criteria => true")
		return true
	}

	ev.tracef("implicit $and:")
	ev.indent()
	result := true
	for _, sub := range c.Subclauses {
		if !sub.IsSatisfied(ev) {
			result = false
			break
		}
	}
	ev.outdent()
	ev.tracef("implicit $and => %t", result)
	return result
}

// IsSatisfied applies the logical operator with left-to-right short-circuit.
func (c *Logical) IsSatisfied(ev *Evaluation) bool {
	ev.tracef("%s:", c.Operator)
	ev.indent()
	result := c.evaluate(ev)
	ev.outdent()
	ev.tracef("%s => %t", c.Operator, result)
	return result
}

func (c *Logical) evaluate(ev *Evaluation) bool {
	switch c.Operator {
	case LogicalAnd:
		for _, sub := range c.Subclauses {
			if !sub.IsSatisfied(ev) {
				return false
			}
		}
		return true
	case LogicalOr:
		for _, sub := range c.Subclauses {
			if sub.IsSatisfied(ev) {
				return true
			}
		}
		return false
	case LogicalNot:
		// NAND: stop at the first subclause that fails.
		for _, sub := range c.Subclauses {
			if !sub.IsSatisfied(ev) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// IsSatisfied resolves the field once and requires every test to pass.
func (c *Conditional) IsSatisfied(ev *Evaluation) bool {
	value := ev.resolve(c.Field)
	for _, test := range c.Tests {
		param := orAbsent(test.Parameter)
		matched := Compare(test.Operator, value, param, ev.now)
		ev.tracef("%q = %s %s %s => %t", c.Field.String(), value, test.Operator, param, matched)
		ev.logger.Debug("conditional evaluated",
			"field", c.Field.String(),
			"value", value.String(),
			"operator", test.Operator.String(),
			"parameter", param.String(),
			"matched", matched,
		)
		if !matched {
			return false
		}
	}
	return true
}

func (c *ImplicitAnd) String() string {
	return "and(" + joinClauses(c.Subclauses) + ")"
}

func (c *Logical) String() string {
	return strings.TrimPrefix(c.Operator.String(), "$") + "(" + joinClauses(c.Subclauses) + ")"
}

func (c *Conditional) String() string {
	var b strings.Builder
	b.WriteString(c.Field.String())
	for _, t := range c.Tests {
		b.WriteString(" ")
		b.WriteString(t.Operator.String())
		b.WriteString(" ")
		b.WriteString(orAbsent(t.Parameter).String())
	}
	return b.String()
}

func joinClauses(clauses []Clause) string {
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}
