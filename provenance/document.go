package provenance

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
)

// interpolation matches ${key.path} and ${oc.env:NAME[,default]}.
var interpolation = regexp.MustCompile(`\$\{([^${}]+)\}`)

const (
	envResolver      = "oc.env:"
	maxResolveDepth  = 32
	documentResolver = "Document.Resolve"
)

// Document is a structured YAML run configuration. Resolving it expands
// anchors and aliases and the ${...} interpolations; only documents get a
// config.yaml rendering during capture.
type Document struct {
	root   map[string]any
	source string
	getenv func(string) string
}

// ParseDocument decodes a YAML mapping. Keys that are not strings, such
// as integer class ids, are formatted into strings.
func ParseDocument(data []byte) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse config document")
	}
	if raw == nil {
		return &Document{root: map[string]any{}, getenv: os.Getenv}, nil
	}
	root, ok := stringKeys(raw).(map[string]any)
	if !ok {
		return nil, errors.NewValueError("ParseDocument", fmt.Sprintf("config document must be a mapping, got %T", raw))
	}
	return &Document{root: root, getenv: os.Getenv}, nil
}

// stringKeys rewrites every nested map to map[string]any.
func stringKeys(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, child := range x {
			x[k] = stringKeys(child)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, child := range x {
			out[fmt.Sprint(k)] = stringKeys(child)
		}
		return out
	case []any:
		for i, child := range x {
			x[i] = stringKeys(child)
		}
		return x
	default:
		return v
	}
}

// LoadDocument reads and decodes a YAML file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	doc.source = path
	return doc, nil
}

// Source is the file the document was loaded from, if any.
func (d *Document) Source() string {
	return d.source
}

// WithGetenv returns the document with a different environment lookup for
// oc.env interpolations.
func (d *Document) WithGetenv(getenv func(string) string) *Document {
	cp := *d
	cp.getenv = getenv
	return &cp
}

// Resolve returns a deep copy of the document with every interpolation
// expanded. A string that is exactly one ${key} takes the referenced
// value with its type; otherwise references are formatted into the string.
func (d *Document) Resolve() (map[string]any, error) {
	r := resolver{doc: d}
	out, err := r.value(d.root, 0)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

// YAML renders the resolved document.
func (d *Document) YAML() ([]byte, error) {
	resolved, err := d.Resolve()
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(resolved)
	if err != nil {
		return nil, errors.Wrap(err, "render config document")
	}
	return out, nil
}

type resolver struct {
	doc *Document
}

func (r resolver) value(v any, depth int) (any, error) {
	if depth > maxResolveDepth {
		return nil, errors.NewValueError(documentResolver, "interpolation is too deep or cyclic")
	}
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, child := range x {
			rv, err := r.value(child, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, child := range x {
			rv, err := r.value(child, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	case string:
		return r.interpolate(x, depth)
	default:
		return v, nil
	}
}

func (r resolver) interpolate(s string, depth int) (any, error) {
	matches := interpolation.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		return r.reference(s[matches[0][2]:matches[0][3]], depth)
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		v, err := r.reference(s[m[2]:m[3]], depth)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "%v", v)
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

func (r resolver) reference(expr string, depth int) (any, error) {
	expr = strings.TrimSpace(expr)
	if name, ok := strings.CutPrefix(expr, envResolver); ok {
		name, def, hasDefault := strings.Cut(name, ",")
		name = strings.TrimSpace(name)
		if v := r.doc.getenv(name); v != "" {
			return v, nil
		}
		if hasDefault {
			return strings.TrimSpace(def), nil
		}
		return nil, errors.NewValueError(documentResolver, fmt.Sprintf("environment variable %s is not set", name))
	}

	var cur any = r.doc.root
	for _, part := range strings.Split(expr, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, errors.NewValueError(documentResolver, fmt.Sprintf("key %s not found", expr))
		}
		if cur, ok = m[part]; !ok {
			return nil, errors.NewValueError(documentResolver, fmt.Sprintf("key %s not found", expr))
		}
	}
	return r.value(cur, depth+1)
}
