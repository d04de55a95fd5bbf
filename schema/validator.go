package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/workfleet/fulfill/response"
)

// Validator checks raw input against a descriptor's emitted schema document
// and reports failures as response validation records.
type Validator struct {
	schema  *jsonschema.Schema
	doc     any
	printer *message.Printer
}

// NewValidator compiles the descriptor's Draft-4 document.
func NewValidator(p *Parameter) (*Validator, error) {
	// Round-trip through encoding/json so the compiler sees the same value
	// shapes a decoded document would have.
	raw, err := json.Marshal(p.Document())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft4)
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{
		schema:  schema,
		doc:     doc,
		printer: message.NewPrinter(language.English),
	}, nil
}

// Validate returns one record per leaf failure, or nil when value conforms.
func (v *Validator) Validate(value any) []response.ValidationError {
	err := v.schema.Validate(value)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []response.ValidationError{{Message: err.Error(), Cause: err.Error()}}
	}
	var out []response.ValidationError
	for _, leaf := range leaves(verr) {
		out = append(out, v.records(value, leaf)...)
	}
	return out
}

func leaves(err *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return []*jsonschema.ValidationError{err}
	}
	var out []*jsonschema.ValidationError
	for _, cause := range err.Causes {
		out = append(out, leaves(cause)...)
	}
	return out
}

// records converts one leaf failure into validation records carrying the
// instance path, the failing keyword, the keyword's declared value, and a
// prose message.
func (v *Validator) records(root any, leaf *jsonschema.ValidationError) []response.ValidationError {
	path := strings.Join(leaf.InstanceLocation, "/")
	sub := schemaAt(v.doc, leaf.InstanceLocation)
	instance := instanceAt(root, leaf.InstanceLocation)

	base := response.ValidationError{
		Path:         path,
		RelativePath: path,
		AbsolutePath: path,
	}

	switch k := leaf.ErrorKind.(type) {
	case *kind.Type:
		base.Validator = "type"
		base.ValidatorValue = keywordValue(sub, "type", nil)
		base.Message = fmt.Sprintf("%s is not of type %s", render(instance), quoteList(k.Want))
	case *kind.Enum:
		base.Validator = "enum"
		base.ValidatorValue = keywordValue(sub, "enum", k.Want)
		base.Message = fmt.Sprintf("%s is not one of %s", render(instance), renderList(k.Want))
	case *kind.Required:
		out := make([]response.ValidationError, 0, len(k.Missing))
		for _, name := range k.Missing {
			rec := base
			rec.Validator = "required"
			rec.ValidatorValue = keywordValue(sub, "required", k.Missing)
			rec.Message = fmt.Sprintf("'%s' is a required property", name)
			rec.Cause = rec.Message
			out = append(out, rec)
		}
		return out
	default:
		base.Validator = strings.Join(leaf.ErrorKind.KeywordPath(), "/")
		if sub != nil && base.Validator != "" {
			base.ValidatorValue = keywordValue(sub, base.Validator, nil)
		}
		base.Message = leaf.ErrorKind.LocalizedString(v.printer)
	}
	base.Cause = base.Message
	return []response.ValidationError{base}
}

// schemaAt descends the schema document along an instance path.
func schemaAt(doc any, location []string) map[string]any {
	sub, _ := doc.(map[string]any)
	for _, seg := range location {
		if sub == nil {
			return nil
		}
		if props, ok := sub["properties"].(map[string]any); ok {
			if next, ok := props[seg].(map[string]any); ok {
				sub = next
				continue
			}
		}
		if items, ok := sub["items"].(map[string]any); ok {
			sub = items
			continue
		}
		if patterns, ok := sub["patternProperties"].(map[string]any); ok {
			for _, next := range patterns {
				if m, ok := next.(map[string]any); ok {
					sub = m
				}
			}
			continue
		}
		if extra, ok := sub["additionalProperties"].(map[string]any); ok {
			sub = extra
			continue
		}
		return nil
	}
	return sub
}

// instanceAt descends a decoded JSON value along an instance path.
func instanceAt(root any, location []string) any {
	cur := root
	for _, seg := range location {
		switch node := cur.(type) {
		case map[string]any:
			cur = node[seg]
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			cur = node[i]
		default:
			return nil
		}
	}
	return cur
}

func keywordValue(sub map[string]any, keyword string, fallback any) any {
	if sub != nil {
		if v, ok := sub[keyword]; ok {
			return v
		}
	}
	return fallback
}

// render formats an instance value the way the classic validator quoted it.
func render(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return "'" + x + "'"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(raw)
	}
}

func renderList(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = render(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func quoteList(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = "'" + n + "'"
	}
	return strings.Join(parts, ", ")
}
