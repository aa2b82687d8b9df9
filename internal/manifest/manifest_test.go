package manifest

import (
	"errors"
	"strings"
	"testing"

	"github.com/apptentive/engagekit/internal/criteria"
	"github.com/apptentive/engagekit/internal/types"
)

const sampleManifest = `{
	"interactions": [
		{"id": "survey-1", "type": "Survey", "version": 2, "configuration": {"title": "How are we doing?"}},
		{"id": "love-dialog", "type": "EnjoymentDialog", "display_type": "modal"}
	],
	"targets": {
		"local#app#launch": [
			{"interaction_id": "survey-1", "criteria": {"code_point/local#app#launch/invokes/total": {"$gte": 3}}},
			{"interaction_id": "love-dialog", "criteria": {}}
		],
		"local#app#checkout": [
			{"interaction_id": "love-dialog"}
		]
	},
	"expiry": 86400
}`

func TestDecode_Normal(t *testing.T) {
	m, err := Decode([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Decode() error = %v, want nil", err)
	}

	if len(m.Interactions) != 2 {
		t.Fatalf("len(Interactions) = %d, want 2", len(m.Interactions))
	}
	if m.Interactions[0].ID != "survey-1" || m.Interactions[0].Type != "Survey" || m.Interactions[0].Version != 2 {
		t.Errorf("Interactions[0] = %+v, want survey-1/Survey/2", m.Interactions[0])
	}
	if !strings.Contains(string(m.Interactions[0].Configuration), "How are we doing?") {
		t.Errorf("Configuration = %s, want passthrough", m.Interactions[0].Configuration)
	}
	if m.Interactions[1].DisplayType != "modal" {
		t.Errorf("DisplayType = %q, want modal", m.Interactions[1].DisplayType)
	}
	if m.Expiry != 86400 {
		t.Errorf("Expiry = %v, want 86400", m.Expiry)
	}

	launch := m.Targets[types.LocalEvent("launch")]
	if len(launch) != 2 {
		t.Fatalf("len(launch invocations) = %d, want 2", len(launch))
	}
	if launch[0].InteractionID != "survey-1" || launch[1].InteractionID != "love-dialog" {
		t.Errorf("launch order = %s, %s, want survey-1, love-dialog", launch[0].InteractionID, launch[1].InteractionID)
	}

	want := "and(code_point/local#app#launch/invokes/total $gte 3)"
	if got := launch[0].Criteria.String(); got != want {
		t.Errorf("Criteria = %q, want %q", got, want)
	}

	checkout := m.Targets[types.LocalEvent("checkout")]
	if len(checkout) != 1 {
		t.Fatalf("len(checkout invocations) = %d, want 1", len(checkout))
	}
	if !criteria.Evaluate(checkout[0].Criteria, nil) {
		t.Errorf("missing criteria evaluated false, want always true")
	}

	events := m.Events()
	if len(events) != 2 || events[0] != "local#app#checkout" || events[1] != "local#app#launch" {
		t.Errorf("Events() = %v, want sorted checkout, launch", events)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []error
	}{
		{
			name: "not json",
			doc:  `{"interactions": [`,
			want: []error{types.ErrInvalidManifest},
		},
		{
			name: "trailing data",
			doc:  `{"interactions": []} {}`,
			want: []error{types.ErrInvalidManifest},
		},
		{
			name: "interaction without id",
			doc:  `{"interactions": [{"type": "Survey"}]}`,
			want: []error{types.ErrInvalidManifest, types.ErrMissingInteractionID},
		},
		{
			name: "invocation without id",
			doc:  `{"targets": {"evt": [{"criteria": {}}]}}`,
			want: []error{types.ErrInvalidManifest, types.ErrMissingInteractionID},
		},
		{
			name: "unknown operator in criteria",
			doc:  `{"targets": {"evt": [{"interaction_id": "a", "criteria": {"f": {"$regex": "x"}}}]}}`,
			want: []error{types.ErrInvalidManifest, types.ErrUnknownOperator},
		},
		{
			name: "one bad invocation aborts all",
			doc: `{"targets": {
				"good": [{"interaction_id": "a", "criteria": {"f": 1}}],
				"bad": [{"interaction_id": "b", "criteria": {"$and": []}}]
			}}`,
			want: []error{types.ErrInvalidManifest, types.ErrEmptyClause},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode([]byte(tt.doc))
			if m != nil {
				t.Errorf("Decode() manifest = %v, want nil", m)
			}
			for _, want := range tt.want {
				if !errors.Is(err, want) {
					t.Errorf("Decode() error = %v, want %v", err, want)
				}
			}
		})
	}
}

func TestDecode_CriteriaErrorIsDecodeError(t *testing.T) {
	_, err := Decode([]byte(`{"targets": {"evt": [{"interaction_id": "a", "criteria": {"f": {"_type": "money"}}}]}}`))

	var decodeErr *criteria.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Decode() error = %v, want *criteria.DecodeError", err)
	}
	if !errors.Is(err, types.ErrUnknownLiteralType) {
		t.Errorf("Decode() error = %v, want ErrUnknownLiteralType", err)
	}
}

func TestLoad(t *testing.T) {
	m, err := Load(strings.NewReader(sampleManifest))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if len(m.Targets) != 2 {
		t.Errorf("len(Targets) = %d, want 2", len(m.Targets))
	}
}
