package state

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apptentive/engagekit/internal/criteria"
	"github.com/apptentive/engagekit/internal/types"
)

var fixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func loadFixture(t *testing.T) *Root {
	t.Helper()
	snap, err := LoadSnapshot("testdata/snapshot.yaml")
	require.NoError(t, err)
	return NewRoot(snap,
		WithClock(func() time.Time { return fixedNow }),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	)
}

func resolve(t *testing.T, r *Root, path string) (criteria.Value, error) {
	t.Helper()
	return r.Resolve(criteria.MustParseFieldPath(path))
}

func TestRoot_Resolve(t *testing.T) {
	root := loadFixture(t)

	tests := []struct {
		path string
		want string
	}{
		{"application/version", "version(3.2.1)"},
		{"application/build", "version(412)"},
		{"application/debug", "false"},
		{"sdk/version", "version(6.8.0)"},
		{"sdk/distribution", `"CocoaPods"`},
		{"sdk/distribution_version", "version(1.14.3)"},
		{"current_time", "datetime(2024-03-15T12:00:00Z)"},
		{"is_update/version", "true"},
		{"is_update/build", "true"},
		{"time_at_install/total", "datetime(2024-01-10T08:00:00Z)"},
		{"time_at_install/version", "datetime(2024-03-01T08:00:00Z)"},
		{"time_at_install/build", "datetime(2024-03-14T08:00:00Z)"},
		{"device/os_name", `"iOS"`},
		{"device/os_version", "version(17.4)"},
		{"device/os_build", `"21E219"`},
		{"device/model", `"iPhone15,2"`},
		{"device/locale_language_code", `"en"`},
		{"device/locale_region_code", `"US"`},
		{"device/locale_raw", `"en_US"`},
		{"device/carrier", `"Verizon"`},
		{"device/custom_data/beta_tester", "true"},
		{"device/custom_data/storage_gb", "256"},
		{"device/custom_data/missing", "null"},
		{"person/name", `"Annie Example"`},
		{"person/email", `"annie@example.com"`},
		{"person/custom_data/plan", `"pro"`},
		{"person/custom_data/lifetime_value", "149.5"},
		{"code_point/local#app#launch/invokes/total", "12"},
		{"code_point/local#app#launch/invokes/version", "4"},
		{"code_point/local#app#launch/invokes/build", "1"},
		{"code_point/local#app#launch/last_invoked_at/total", "datetime(2024-03-15T11:30:00Z)"},
		{"code_point/local#app#never/invokes/total", "0"},
		{"code_point/local#app#never/last_invoked_at/total", "null"},
		{"interactions/survey-1/invokes/total", "2"},
		{"interactions/survey-1/last_invoked_at/total", "datetime(2024-03-01T09:00:00Z)"},
		{"interactions/survey-1/answers/id", `["choice_yes"]`},
		{"interactions/survey-1/answers/value", `["Yes", 7]`},
		{"interactions/survey-1/current_answer/id", `["choice_no"]`},
		{"interactions/survey-1/current_answer/value", `[]`},
		{"interactions/unknown/answers/id", `[]`},
		{"random/spring_promo/percent", "42.5"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			v, err := resolve(t, root, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestRoot_UnknownFields(t *testing.T) {
	root := loadFixture(t)

	for _, path := range []string{
		"nope",
		"application",
		"application/color",
		"application/version/major",
		"current_time/extra",
		"device/custom_data",
		"device/custom_data/a/b",
		"person/phone",
		"code_point",
		"code_point/local#app#launch",
		"code_point/local#app#launch/invokes",
		"code_point/local#app#launch/invokes/weekly",
		"code_point/local#app#launch/answers/id",
		"interactions/survey-1/answers/text",
		"random",
		"random/a/b/percent",
		"random/seed",
	} {
		t.Run(path, func(t *testing.T) {
			_, err := resolve(t, root, path)
			assert.True(t, errors.Is(err, types.ErrUnknownField), "error = %v, want ErrUnknownField", err)
		})
	}
}

func TestRandom_Percent(t *testing.T) {
	root := loadFixture(t)

	for i := 0; i < 50; i++ {
		v, err := resolve(t, root, "random/percent")
		require.NoError(t, err)
		n, ok := v.(criteria.Number)
		require.True(t, ok)
		assert.GreaterOrEqual(t, float64(n), 0.0)
		assert.Less(t, float64(n), 100.0)
	}

	first, err := resolve(t, root, "random/cohort/percent")
	require.NoError(t, err)
	second, err := resolve(t, root, "random/cohort/percent")
	require.NoError(t, err)
	assert.Equal(t, first, second, "keyed percent is stable")
}

func TestRoot_EvaluatesCriteria(t *testing.T) {
	root := loadFixture(t)
	eval := criteria.NewEvaluator(criteria.WithClock(func() time.Time { return fixedNow }))

	tests := []struct {
		doc  string
		want bool
	}{
		{`{"code_point/local#app#launch/invokes/total": {"$gte": 10}}`, true},
		{`{"application/version": {"$gte": {"_type": "version", "version": "3.0"}}}`, true},
		{`{"device/os_version": {"$lt": {"_type": "version", "version": "17.10"}}}`, true},
		{`{"person/email": {"$ends_with": "@EXAMPLE.com"}}`, true},
		{`{"time_at_install/total": {"$before": -86400}}`, true},
		{`{"code_point/local#app#launch/last_invoked_at/total": {"$after": -3600}}`, true},
		{`{"interactions/survey-1/answers/id": "choice_yes"}`, true},
		{`{"interactions/survey-1/answers/value": {"$eq": "yes"}}`, true},
		{`{"interactions/survey-1/current_answer/value": {"$exists": false}}`, true},
		{`{"person/custom_data/plan": {"$ne": "free"}, "device/custom_data/beta_tester": true}`, true},
		{`{"random/spring_promo/percent": {"$lt": 50}}`, true},
		{`{"$not": [{"is_update/version": true}, {"is_update/build": true}]}`, false},
		{`{"person/custom_data/churn_risk": {"$exists": true}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.doc, func(t *testing.T) {
			assert.Equal(t, tt.want, eval.Evaluate(criteria.MustDecode(tt.doc), root))
		})
	}
}

func TestRoot_Register(t *testing.T) {
	root := NewRoot(nil)
	root.Register("conversation", criteria.MapState{"state": criteria.Text("new")})

	v, err := resolve(t, root, "conversation/state")
	require.NoError(t, err)
	assert.Equal(t, criteria.Text("new"), v)

	v, err = resolve(t, root, "application/version")
	require.NoError(t, err)
	assert.True(t, criteria.IsAbsent(v), "empty snapshot version is absent")
}

func TestDecodeSnapshot(t *testing.T) {
	snap, err := DecodeSnapshot(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, snap.CodePoints)

	_, err = DecodeSnapshot(strings.NewReader("application:\n  colour: blue\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = LoadSnapshot("testdata/does-not-exist.yaml")
	assert.Error(t, err)
}

func TestVersionValueFallsBackToText(t *testing.T) {
	assert.Equal(t, criteria.Text("2024.06-rc"), versionValue("2024.06-rc"))
	assert.True(t, criteria.IsAbsent(versionValue("")))
}
