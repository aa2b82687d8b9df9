package state

import (
	"fmt"
	"math"

	"github.com/apptentive/engagekit/internal/criteria"
)

const customDataKey = "custom_data"

// DeviceInfo resolves device/... paths.
type DeviceInfo struct {
	Device Device
}

// Resolve implements criteria.StateProvider.
func (d *DeviceInfo) Resolve(field criteria.FieldPath) (criteria.Value, error) {
	if field.Key() == customDataKey {
		return customData(d.Device.CustomData, field)
	}

	key, ok := leaf(field)
	if !ok {
		return nil, unknownField(field)
	}
	switch key {
	case "os_name":
		return textValue(d.Device.OSName), nil
	case "os_version":
		return versionValue(d.Device.OSVersion), nil
	case "os_build":
		return textValue(d.Device.OSBuild), nil
	case "model":
		return textValue(d.Device.Model), nil
	case "locale_language_code":
		return textValue(d.Device.LocaleLanguageCode), nil
	case "locale_region_code":
		return textValue(d.Device.LocaleRegionCode), nil
	case "locale_raw":
		return textValue(d.Device.LocaleRaw), nil
	case "carrier":
		return textValue(d.Device.Carrier), nil
	default:
		return nil, unknownField(field)
	}
}

// PersonInfo resolves person/name, person/email and person/custom_data/<key>.
type PersonInfo struct {
	Person Person
}

// Resolve implements criteria.StateProvider.
func (p *PersonInfo) Resolve(field criteria.FieldPath) (criteria.Value, error) {
	if field.Key() == customDataKey {
		return customData(p.Person.CustomData, field)
	}

	key, ok := leaf(field)
	if !ok {
		return nil, unknownField(field)
	}
	switch key {
	case "name":
		return textValue(p.Person.Name), nil
	case "email":
		return textValue(p.Person.Email), nil
	default:
		return nil, unknownField(field)
	}
}

// customData resolves custom_data/<key>. A key that is not set is Absent,
// not an error, so {"$exists": false} holds for it.
func customData(data map[string]any, field criteria.FieldPath) (criteria.Value, error) {
	next, err := field.Advance(1)
	if err != nil {
		return nil, err
	}
	key, ok := leaf(next)
	if !ok {
		return nil, unknownField(field)
	}

	raw, ok := data[key]
	if !ok {
		return criteria.Absent{}, nil
	}
	return scalarValue(raw)
}

// scalarValue converts a decoded YAML or JSON scalar to a Value.
func scalarValue(raw any) (criteria.Value, error) {
	switch v := raw.(type) {
	case nil:
		return criteria.Absent{}, nil
	case string:
		return criteria.Text(v), nil
	case bool:
		return criteria.Bool(v), nil
	case int:
		return criteria.Integer(v), nil
	case int64:
		return criteria.Integer(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return criteria.Number(float64(v)), nil
		}
		return criteria.Integer(v), nil
	case float64:
		return criteria.Number(v), nil
	default:
		return nil, fmt.Errorf("unsupported custom data value %T", raw)
	}
}
