package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Structured is implemented by types the model is asked to emit as JSON.
type Structured interface {
	Validate() error
	JSONSchema() map[string]any
}

// ExtractJSON returns the first balanced JSON object or array in text,
// ignoring markdown code fences and surrounding prose.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			s = strings.TrimSpace(rest[:j])
		}
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}
	opener, closer := s[start], byte('}')
	if opener == '[' {
		closer = ']'
	}

	depth, inString, escaped := 0, false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == opener:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated JSON in response")
}

// DecodeJSON extracts and unmarshals the JSON payload of a model reply.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return NewLLMErrorWithCause("", ErrorTypeJSONParsingError, err.Error(), err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return NewLLMErrorWithCause("", ErrorTypeJSONParsingError, "decode model JSON", err)
	}
	if s, ok := v.(Structured); ok {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// ChatJSON sends req and decodes the reply into out. Callers that need a
// default on failure keep their own fallback and inspect the error.
func ChatJSON(ctx context.Context, c Client, req *ChatRequest, out any) error {
	if req.ResponseFormat == nil {
		if m, err := GetModel(c.Model()); err == nil && m.JSONMode {
			req.ResponseFormat = &ResponseFormat{Type: "json_object"}
		}
	}
	resp, err := c.Chat(ctx, req)
	if err != nil {
		return err
	}
	return DecodeJSON(resp.Content, out)
}

// ParseStructured decodes jsonStr into a fresh T and validates it.
// T may be a struct or a pointer to one.
func ParseStructured[T Structured](jsonStr string) (T, error) {
	var zero T
	typ := reflect.TypeOf((*T)(nil)).Elem()
	isPtr := typ.Kind() == reflect.Ptr
	if isPtr {
		typ = typ.Elem()
	}

	ptr := reflect.New(typ)
	if err := DecodeJSON(jsonStr, ptr.Interface()); err != nil {
		return zero, err
	}

	if isPtr {
		return ptr.Interface().(T), nil
	}
	return ptr.Elem().Interface().(T), nil
}

// SchemaOf builds a JSON schema for a struct from its json and
// description tags. Fields without omitempty are required.
func SchemaOf(v any) map[string]any {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	props := map[string]any{}
	schema := map[string]any{"type": "object", "properties": props}
	if t == nil || t.Kind() != reflect.Struct {
		return schema
	}

	var required []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		props[name] = fieldSchema(f.Type, f.Tag.Get("description"))
		if !strings.Contains(opts, "omitempty") {
			required = append(required, name)
		}
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func fieldSchema(t reflect.Type, desc string) map[string]any {
	s := map[string]any{}
	if desc != "" {
		s["description"] = desc
	}
	switch t.Kind() {
	case reflect.Ptr:
		return fieldSchema(t.Elem(), desc)
	case reflect.String:
		s["type"] = "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		s["type"] = "integer"
	case reflect.Float32, reflect.Float64:
		s["type"] = "number"
	case reflect.Bool:
		s["type"] = "boolean"
	case reflect.Slice, reflect.Array:
		s["type"] = "array"
		s["items"] = fieldSchema(t.Elem(), "")
	case reflect.Struct:
		return mergeDesc(SchemaOf(reflect.New(t).Elem().Interface()), desc)
	default:
		s["type"] = "object"
	}
	return s
}

func mergeDesc(s map[string]any, desc string) map[string]any {
	if desc != "" {
		s["description"] = desc
	}
	return s
}
