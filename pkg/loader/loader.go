// Package loader reads the three on-disk JSON documents — manifest,
// platform base, and environment overlay — into the typed records of
// pkg/model, dispatching polymorphic resource records by their "type" tag.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/deskribe/deskribe/pkg/model"
)

var validate = validator.New()

// Loader reads manifest, platform base, and environment overlay files.
type Loader struct{}

// New returns a ready Loader. Loader holds no state: each Load* call reads
// fresh from disk, matching the core's "persists nothing, owns nothing"
// posture.
func New() *Loader {
	return &Loader{}
}

// Result bundles the three loaded records plus any warnings raised while
// loading (currently only a missing environment overlay).
type Result struct {
	Manifest    model.Manifest
	Platform    model.PlatformConfig
	Environment model.EnvironmentConfig
	Warnings    []model.Warning
}

// LoadAll reads manifestPath, "<platformPath>/base.json", and
// "<platformPath>/envs/<env>.json" and returns their typed records.
// knownTypes is the set of resource types currently registered in the
// Plugin Registry (§3: "a variant is recognized iff the Registry has a
// Resource Provider whose declared type equals the tag"); Registration
// completes before any command runs (§4.2), so this set is stable for the
// duration of the load.
func (l *Loader) LoadAll(manifestPath, platformPath, env string, knownTypes map[string]bool) (Result, error) {
	var res Result

	m, err := l.LoadManifest(manifestPath, knownTypes)
	if err != nil {
		return res, err
	}
	res.Manifest = m

	p, err := l.LoadPlatform(filepath.Join(platformPath, "base.json"))
	if err != nil {
		return res, err
	}
	res.Platform = p

	e, warn, err := l.LoadEnvironment(filepath.Join(platformPath, "envs", env+".json"), env)
	if err != nil {
		return res, err
	}
	res.Environment = e
	if warn != nil {
		res.Warnings = append(res.Warnings, *warn)
	}

	return res, nil
}

// LoadManifest reads and decodes the developer manifest. knownTypes is the
// set of resource types registered in the Plugin Registry; any resource
// whose "type" is not a member fails the load with UnknownResourceType
// (§4.1, §9).
func (l *Loader) LoadManifest(path string, knownTypes map[string]bool) (model.Manifest, error) {
	raw, err := readFile(path)
	if err != nil {
		return model.Manifest{}, err
	}

	var envelope struct {
		Name      string            `json:"name"`
		Resources []json.RawMessage `json:"resources"`
		Services  []json.RawMessage `json:"services"`
	}
	if err := unmarshalCaseInsensitive(raw, &envelope); err != nil {
		return model.Manifest{}, model.NewError(model.ErrorKindConfigParse, err.Error()).WithSubject(path)
	}
	if envelope.Name == "" {
		return model.Manifest{}, model.NewError(model.ErrorKindConfigSchema, "manifest is missing required field \"name\"").WithSubject(path)
	}

	m := model.Manifest{Name: envelope.Name}

	seen := map[string]bool{}
	for _, rawRes := range envelope.Resources {
		res, err := decodeResource(rawRes, knownTypes)
		if err != nil {
			return model.Manifest{}, err
		}
		if seen[res.Type] {
			return model.Manifest{}, model.NewError(model.ErrorKindDuplicateResourceType,
				"resource type declared more than once in manifest").WithSubject(res.Type)
		}
		seen[res.Type] = true
		m.Resources = append(m.Resources, res)
	}

	for _, rawSvc := range envelope.Services {
		svc, err := decodeService(rawSvc)
		if err != nil {
			return model.Manifest{}, err
		}
		m.Services = append(m.Services, svc)
	}

	if err := validate.Struct(&m); err != nil {
		return model.Manifest{}, model.NewError(model.ErrorKindConfigSchema, err.Error()).WithSubject(path)
	}

	return m, nil
}

// decodeResource dispatches a raw JSON resource object by its "type" tag
// to the concrete variant fields. Unknown property names are ignored;
// property-name matching is case-insensitive. A type absent from
// knownTypes fails with UnknownResourceType.
func decodeResource(raw json.RawMessage, knownTypes map[string]bool) (model.Resource, error) {
	fields, err := toLowerKeyedMap(raw)
	if err != nil {
		return model.Resource{}, model.NewError(model.ErrorKindConfigParse, err.Error())
	}

	typeVal, ok := fields["type"]
	if !ok {
		return model.Resource{}, model.NewError(model.ErrorKindConfigSchema, "resource is missing required field \"type\"")
	}
	var typ string
	if err := json.Unmarshal(typeVal, &typ); err != nil || typ == "" {
		return model.Resource{}, model.NewError(model.ErrorKindConfigSchema, "resource \"type\" must be a non-empty string")
	}
	if !knownTypes[typ] {
		return model.Resource{}, model.NewError(model.ErrorKindUnknownResourceType,
			"no resource provider is registered for this type").WithSubject(typ)
	}

	res := model.Resource{Type: typ, Config: map[string]interface{}{}}

	if v, ok := fields["size"]; ok {
		_ = json.Unmarshal(v, &res.Size)
	}
	if v, ok := fields["labels"]; ok {
		_ = json.Unmarshal(v, &res.Labels)
	}
	if v, ok := fields["annotations"]; ok {
		_ = json.Unmarshal(v, &res.Annotations)
	}

	switch model.ResourceKind(typ) {
	case model.ResourceKindPostgres:
		if v, ok := fields["version"]; ok {
			var s string
			if json.Unmarshal(v, &s) == nil {
				res.Version = &s
			}
		}
		if v, ok := fields["ha"]; ok {
			var b bool
			if json.Unmarshal(v, &b) == nil {
				res.HA = &b
			}
		}
		if v, ok := fields["sku"]; ok {
			var s string
			if json.Unmarshal(v, &s) == nil {
				res.SKU = &s
			}
		}
	case model.ResourceKindRedis:
		if v, ok := fields["version"]; ok {
			var s string
			if json.Unmarshal(v, &s) == nil {
				res.Version = &s
			}
		}
		if v, ok := fields["ha"]; ok {
			var b bool
			if json.Unmarshal(v, &b) == nil {
				res.HA = &b
			}
		}
		if v, ok := fields["maxmemorymb"]; ok {
			var n int
			if json.Unmarshal(v, &n) == nil {
				res.MaxMemoryMB = &n
			}
		}
	case model.ResourceKindKafkaMessaging:
		if v, ok := fields["topics"]; ok {
			var rawTopics []json.RawMessage
			if err := json.Unmarshal(v, &rawTopics); err == nil {
				for _, rt := range rawTopics {
					topic, err := decodeTopic(rt)
					if err != nil {
						return model.Resource{}, err
					}
					res.Topics = append(res.Topics, topic)
				}
			}
		}
	default:
		// A registered type that is not one of the three kinds with
		// typed fields on Resource. Types with no registered provider
		// were already rejected above with UnknownResourceType. The
		// full raw object is preserved in Config for the provider to
		// decode.
	}

	for k, v := range fields {
		var decoded interface{}
		if json.Unmarshal(v, &decoded) == nil {
			res.Config[k] = decoded
		}
	}

	return res, nil
}

func decodeTopic(raw json.RawMessage) (model.KafkaTopic, error) {
	fields, err := toLowerKeyedMap(raw)
	if err != nil {
		return model.KafkaTopic{}, model.NewError(model.ErrorKindConfigParse, err.Error())
	}
	var t model.KafkaTopic
	if v, ok := fields["name"]; ok {
		_ = json.Unmarshal(v, &t.Name)
	}
	if t.Name == "" {
		return model.KafkaTopic{}, model.NewError(model.ErrorKindConfigSchema, "kafka topic is missing required field \"name\"")
	}
	if v, ok := fields["partitions"]; ok {
		var n int
		if json.Unmarshal(v, &n) == nil {
			t.Partitions = &n
		}
	}
	if v, ok := fields["retentionhours"]; ok {
		var n int
		if json.Unmarshal(v, &n) == nil {
			t.RetentionHours = &n
		}
	}
	if v, ok := fields["owners"]; ok {
		_ = json.Unmarshal(v, &t.Owners)
	}
	if v, ok := fields["consumers"]; ok {
		_ = json.Unmarshal(v, &t.Consumers)
	}
	return t, nil
}

func decodeService(raw json.RawMessage) (model.Service, error) {
	fields, err := toLowerKeyedMap(raw)
	if err != nil {
		return model.Service{}, model.NewError(model.ErrorKindConfigParse, err.Error())
	}
	var svc model.Service
	svc.Env = map[string]string{}
	svc.Overrides = map[string]model.ServiceOverride{}

	if v, ok := fields["name"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			svc.Name = &s
		}
	}
	if v, ok := fields["env"]; ok {
		_ = json.Unmarshal(v, &svc.Env)
	}
	if v, ok := fields["overrides"]; ok {
		var rawOverrides map[string]json.RawMessage
		if err := json.Unmarshal(v, &rawOverrides); err == nil {
			for envName, rawOv := range rawOverrides {
				ovFields, err := toLowerKeyedMap(rawOv)
				if err != nil {
					continue
				}
				var ov model.ServiceOverride
				if rv, ok := ovFields["replicas"]; ok {
					var n int
					if json.Unmarshal(rv, &n) == nil {
						ov.Replicas = &n
					}
				}
				if rv, ok := ovFields["cpu"]; ok {
					var s string
					if json.Unmarshal(rv, &s) == nil {
						ov.CPU = &s
					}
				}
				if rv, ok := ovFields["memory"]; ok {
					var s string
					if json.Unmarshal(rv, &s) == nil {
						ov.Memory = &s
					}
				}
				svc.Overrides[envName] = ov
			}
		}
	}

	return svc, nil
}

// LoadPlatform reads and decodes the platform base configuration.
func (l *Loader) LoadPlatform(path string) (model.PlatformConfig, error) {
	raw, err := readFile(path)
	if err != nil {
		return model.PlatformConfig{}, err
	}
	var p model.PlatformConfig
	if err := unmarshalCaseInsensitive(raw, &p); err != nil {
		return model.PlatformConfig{}, model.NewError(model.ErrorKindConfigParse, err.Error()).WithSubject(path)
	}
	if p.Backends == nil {
		p.Backends = map[string]string{}
	}
	if err := validate.Struct(&p); err != nil {
		return model.PlatformConfig{}, model.NewError(model.ErrorKindConfigSchema, err.Error()).WithSubject(path)
	}
	return p, nil
}

// LoadEnvironment reads the environment overlay. If the file does not
// exist, it returns a default EnvironmentConfig with only Name set and a
// non-nil warning (§4.1).
func (l *Loader) LoadEnvironment(path, env string) (model.EnvironmentConfig, *model.Warning, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		w := model.Warning{
			Kind:    model.ErrorKindConfigMissing,
			Message: "environment overlay not found; using defaults only",
			Subject: path,
		}
		return model.EnvironmentConfig{Name: env}, &w, nil
	}

	raw, err := readFile(path)
	if err != nil {
		return model.EnvironmentConfig{}, nil, err
	}
	var e model.EnvironmentConfig
	if err := unmarshalCaseInsensitive(raw, &e); err != nil {
		return model.EnvironmentConfig{}, nil, model.NewError(model.ErrorKindConfigParse, err.Error()).WithSubject(path)
	}
	if e.Name == "" {
		e.Name = env
	}
	if e.Backends == nil {
		e.Backends = map[string]string{}
	}
	return e, nil, nil
}

func readFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.NewError(model.ErrorKindConfigMissing, "required file not found").WithSubject(path)
		}
		return nil, model.NewError(model.ErrorKindConfigMissing, err.Error()).WithSubject(path)
	}
	return raw, nil
}

// toLowerKeyedMap decodes a JSON object into a map keyed by the
// lower-cased form of each property name, implementing the case-
// insensitive property matching §4.1 requires for the polymorphic
// dispatch and for tolerant decode of the known variant fields.
func toLowerKeyedMap(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[lower(k)] = v
	}
	return out, nil
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// unmarshalCaseInsensitive decodes raw into dst using standard
// encoding/json, which already matches struct field names
// case-insensitively against JSON object keys.
func unmarshalCaseInsensitive(raw []byte, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
