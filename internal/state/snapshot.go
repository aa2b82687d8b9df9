package state

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot is the state the engine evaluates against. It is plain data so
// fixtures and the CLI can load it from YAML.
type Snapshot struct {
	Application  AppRelease                   `yaml:"application"`
	SDK          SDK                          `yaml:"sdk"`
	Install      Install                      `yaml:"install"`
	Device       Device                       `yaml:"device"`
	Person       Person                       `yaml:"person"`
	CodePoints   map[string]Metric            `yaml:"code_points"`
	Interactions map[string]InteractionMetric `yaml:"interactions"`

	// Random pins random/<key>/percent values, in [0, 100).
	Random map[string]float64 `yaml:"random"`
}

// AppRelease describes the running application build.
type AppRelease struct {
	Version string `yaml:"version"`
	Build   string `yaml:"build"`
	Debug   bool   `yaml:"debug"`
}

// SDK describes the embedded SDK.
type SDK struct {
	Version             string `yaml:"version"`
	Distribution        string `yaml:"distribution"`
	DistributionVersion string `yaml:"distribution_version"`
}

// Install records when the app, the current version and the current build
// were first seen.
type Install struct {
	Total   time.Time `yaml:"total"`
	Version time.Time `yaml:"version"`
	Build   time.Time `yaml:"build"`

	VersionIsUpdate bool `yaml:"version_is_update"`
	BuildIsUpdate   bool `yaml:"build_is_update"`
}

// Device describes the device.
type Device struct {
	OSName             string         `yaml:"os_name"`
	OSVersion          string         `yaml:"os_version"`
	OSBuild            string         `yaml:"os_build"`
	Model              string         `yaml:"model"`
	LocaleLanguageCode string         `yaml:"locale_language_code"`
	LocaleRegionCode   string         `yaml:"locale_region_code"`
	LocaleRaw          string         `yaml:"locale_raw"`
	Carrier            string         `yaml:"carrier"`
	CustomData         map[string]any `yaml:"custom_data"`
}

// Person describes the app user.
type Person struct {
	Name       string         `yaml:"name"`
	Email      string         `yaml:"email"`
	CustomData map[string]any `yaml:"custom_data"`
}

// Metric counts how often something was engaged.
type Metric struct {
	Invokes       Invokes   `yaml:"invokes"`
	LastInvokedAt time.Time `yaml:"last_invoked_at"`
}

// Invokes splits an invocation count by scope.
type Invokes struct {
	Total   int64 `yaml:"total"`
	Version int64 `yaml:"version"`
	Build   int64 `yaml:"build"`
}

// InteractionMetric is a Metric plus survey answers.
type InteractionMetric struct {
	Metric `yaml:",inline"`

	// Answers is every answer the person has given historically.
	Answers []Answer `yaml:"answers"`

	// CurrentAnswer is the response in flight, for branching within a flow.
	CurrentAnswer []Answer `yaml:"current_answer"`
}

// Answer is one response to a question: a choice id, a free value, or both.
type Answer struct {
	ID    string `yaml:"id"`
	Value any    `yaml:"value"`
}

// DecodeSnapshot reads a YAML snapshot from r.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&snap); err != nil {
		if err == io.EOF {
			return &snap, nil
		}
		return nil, fmt.Errorf("decode state snapshot: %w", err)
	}
	return &snap, nil
}

// LoadSnapshot reads a YAML snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open state snapshot: %w", err)
	}
	defer f.Close()
	return DecodeSnapshot(f)
}
