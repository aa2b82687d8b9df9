package state

import (
	"fmt"

	"github.com/apptentive/engagekit/internal/criteria"
)

/*
 * Engagement history.
 *
 * Code points and interactions share the invokes/last_invoked_at subtree:
 *
 *   code_point/<event>/invokes/total|version|build
 *   code_point/<event>/last_invoked_at/total
 *   interactions/<id>/invokes/total|version|build
 *   interactions/<id>/last_invoked_at/total
 *   interactions/<id>/answers/id|value
 *   interactions/<id>/current_answer/id|value
 *
 * One Engagement serves both roots. After consuming <event> or <id>, the
 * consumed prefix tells it which map to read: Parent() is the entry key and
 * the segment before it is the root.
 */

// Engagement resolves code_point/... and interactions/... paths.
type Engagement struct {
	CodePoints   map[string]Metric
	Interactions map[string]InteractionMetric
}

// Resolve implements criteria.StateProvider. field is positioned at the
// event or interaction id.
func (e *Engagement) Resolve(field criteria.FieldPath) (criteria.Value, error) {
	if field.Resolved() {
		return nil, unknownField(field)
	}
	next, err := field.Advance(1)
	if err != nil {
		return nil, err
	}
	return e.resolveMetric(next)
}

// resolveMetric handles the path positioned after the entry key.
func (e *Engagement) resolveMetric(field criteria.FieldPath) (criteria.Value, error) {
	parents := field.ParentKeys()
	if len(parents) < 2 {
		return nil, unknownField(field)
	}
	entry, root := parents[0], parents[1]

	var (
		metric Metric
		inter  InteractionMetric
	)
	switch root {
	case KeyCodePoint:
		metric = e.CodePoints[entry]
	case KeyInteractions:
		inter = e.Interactions[entry]
		metric = inter.Metric
	default:
		return nil, unknownField(field)
	}

	keys := field.Keys()
	if len(keys) != 2 {
		return nil, unknownField(field)
	}

	switch keys[0] {
	case "invokes":
		switch keys[1] {
		case "total":
			return criteria.Integer(metric.Invokes.Total), nil
		case "version":
			return criteria.Integer(metric.Invokes.Version), nil
		case "build":
			return criteria.Integer(metric.Invokes.Build), nil
		}
	case "last_invoked_at":
		if keys[1] == "total" {
			return instantValue(metric.LastInvokedAt), nil
		}
	case "answers":
		if root == KeyInteractions {
			return answerSet(inter.Answers, keys[1], field)
		}
	case "current_answer":
		if root == KeyInteractions {
			return answerSet(inter.CurrentAnswer, keys[1], field)
		}
	}
	return nil, unknownField(field)
}

func answerSet(answers []Answer, key string, field criteria.FieldPath) (criteria.Value, error) {
	switch key {
	case "id":
		ids := make(criteria.AnswerIDs, 0, len(answers))
		for _, a := range answers {
			if a.ID != "" {
				ids = append(ids, a.ID)
			}
		}
		return ids, nil
	case "value":
		values := make(criteria.AnswerValues, 0, len(answers))
		for _, a := range answers {
			if a.Value == nil {
				continue
			}
			v, err := scalarValue(a.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", field, err)
			}
			values = append(values, v)
		}
		return values, nil
	default:
		return nil, unknownField(field)
	}
}
