package state

import (
	"time"

	"github.com/apptentive/engagekit/internal/criteria"
)

// Application resolves application/version, application/build and
// application/debug.
type Application struct {
	Release AppRelease
}

// Resolve implements criteria.StateProvider.
func (a *Application) Resolve(field criteria.FieldPath) (criteria.Value, error) {
	key, ok := leaf(field)
	if !ok {
		return nil, unknownField(field)
	}
	switch key {
	case "version":
		return versionValue(a.Release.Version), nil
	case "build":
		return versionValue(a.Release.Build), nil
	case "debug":
		return criteria.Bool(a.Release.Debug), nil
	default:
		return nil, unknownField(field)
	}
}

// SDKInfo resolves sdk/version, sdk/distribution and sdk/distribution_version.
type SDKInfo struct {
	SDK SDK
}

// Resolve implements criteria.StateProvider.
func (s *SDKInfo) Resolve(field criteria.FieldPath) (criteria.Value, error) {
	key, ok := leaf(field)
	if !ok {
		return nil, unknownField(field)
	}
	switch key {
	case "version":
		return versionValue(s.SDK.Version), nil
	case "distribution":
		return textValue(s.SDK.Distribution), nil
	case "distribution_version":
		return versionValue(s.SDK.DistributionVersion), nil
	default:
		return nil, unknownField(field)
	}
}

// IsUpdate resolves is_update/version and is_update/build.
type IsUpdate struct {
	Install Install
}

// Resolve implements criteria.StateProvider.
func (u *IsUpdate) Resolve(field criteria.FieldPath) (criteria.Value, error) {
	key, ok := leaf(field)
	if !ok {
		return nil, unknownField(field)
	}
	switch key {
	case "version":
		return criteria.Bool(u.Install.VersionIsUpdate), nil
	case "build":
		return criteria.Bool(u.Install.BuildIsUpdate), nil
	default:
		return nil, unknownField(field)
	}
}

// TimeAtInstall resolves time_at_install/total, /version and /build.
type TimeAtInstall struct {
	Install Install
}

// Resolve implements criteria.StateProvider.
func (i *TimeAtInstall) Resolve(field criteria.FieldPath) (criteria.Value, error) {
	key, ok := leaf(field)
	if !ok {
		return nil, unknownField(field)
	}
	switch key {
	case "total":
		return instantValue(i.Install.Total), nil
	case "version":
		return instantValue(i.Install.Version), nil
	case "build":
		return instantValue(i.Install.Build), nil
	default:
		return nil, unknownField(field)
	}
}

// versionValue parses s as a Version. Empty is Absent; unparseable build
// strings ("2024.06-rc") fall back to Text.
func versionValue(s string) criteria.Value {
	if s == "" {
		return criteria.Absent{}
	}
	v, err := criteria.ParseVersion(s)
	if err != nil {
		return criteria.Text(s)
	}
	return v
}

func textValue(s string) criteria.Value {
	if s == "" {
		return criteria.Absent{}
	}
	return criteria.Text(s)
}

func instantValue(t time.Time) criteria.Value {
	if t.IsZero() {
		return criteria.Absent{}
	}
	return criteria.InstantOf(t)
}
