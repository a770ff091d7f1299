package catalog

import (
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kubiyabot/storyboard/internal/params"
)

const (
	inputPropertiesPath = "components.schemas.Input.properties"
	outputSchemaPath    = "components.schemas.Output"
)

// property is one input of a model's invocation schema
type property struct {
	Name        string
	Type        params.Type
	Format      string
	Description string
	Default     gjson.Result
	Enum        []string
	Order       int64
}

// schemaOf returns the parsed OpenAPI document of the latest version
func schemaOf(e RawEntry) (gjson.Result, bool) {
	if e.LatestVersion == nil || len(e.LatestVersion.OpenAPISchema) == 0 {
		return gjson.Result{}, false
	}
	if !gjson.ValidBytes(e.LatestVersion.OpenAPISchema) {
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(e.LatestVersion.OpenAPISchema), true
}

// hasInputSchema reports whether the entry exposes an input properties object
func hasInputSchema(e RawEntry) bool {
	doc, ok := schemaOf(e)
	if !ok {
		return false
	}
	return doc.Get(inputPropertiesPath).IsObject()
}

// inputProperties lists the schema inputs ordered by x-order, then name
func inputProperties(e RawEntry) []property {
	doc, ok := schemaOf(e)
	if !ok {
		return nil
	}
	props := doc.Get(inputPropertiesPath)
	if !props.IsObject() {
		return nil
	}

	var out []property
	props.ForEach(func(key, value gjson.Result) bool {
		p := property{
			Name:        key.String(),
			Format:      value.Get("format").String(),
			Description: strings.TrimSpace(value.Get("description").String()),
			Default:     value.Get("default"),
			Order:       value.Get("x-order").Int(),
		}
		p.Type, p.Enum = resolveType(doc, value)
		out = append(out, p)
		return true
	})

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// resolveType reads the declared type, following a single allOf $ref into
// components.schemas the way cog publishes enum inputs.
func resolveType(doc, prop gjson.Result) (params.Type, []string) {
	enum := stringList(prop.Get("enum"))
	if t := prop.Get("type"); t.Exists() {
		return params.ParseType(t.String()), enum
	}

	ref := prop.Get(`allOf.0.\$ref`).String()
	if ref == "" {
		ref = prop.Get(`\$ref`).String()
	}
	if !strings.HasPrefix(ref, "#/components/schemas/") {
		return params.TypeUnknown, enum
	}
	target := doc.Get("components.schemas." + escapePath(strings.TrimPrefix(ref, "#/components/schemas/")))
	if !target.Exists() {
		return params.TypeUnknown, enum
	}
	if len(enum) == 0 {
		enum = stringList(target.Get("enum"))
	}
	return params.ParseType(target.Get("type").String()), enum
}

// outputShape returns the output schema's type and format
func outputShape(e RawEntry) (typ, format string, ok bool) {
	doc, found := schemaOf(e)
	if !found {
		return "", "", false
	}
	out := doc.Get(outputSchemaPath)
	if !out.Exists() {
		return "", "", false
	}
	return out.Get("type").String(), out.Get("format").String(), true
}

func stringList(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	var out []string
	for _, item := range r.Array() {
		out = append(out, item.String())
	}
	return out
}

func escapePath(key string) string {
	var sb strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
