package telemetry

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Tag is an exported attribute with its value normalized to a string.
type Tag struct {
	Key   string
	Value string
}

// Transform normalizes one attribute value. It accepts integers, floats,
// bools, strings, JSON-encoded bytes and slices of those primitives, which
// are written as JSON arrays. Anything else reports ok=false.
func Transform(key string, value any) (Tag, bool) {
	switch v := value.(type) {
	case int:
		return Tag{key, strconv.FormatInt(int64(v), 10)}, true
	case int8:
		return Tag{key, strconv.FormatInt(int64(v), 10)}, true
	case int16:
		return Tag{key, strconv.FormatInt(int64(v), 10)}, true
	case int32:
		return Tag{key, strconv.FormatInt(int64(v), 10)}, true
	case int64:
		return Tag{key, strconv.FormatInt(v, 10)}, true
	case uint:
		return Tag{key, strconv.FormatUint(uint64(v), 10)}, true
	case uint8:
		return Tag{key, strconv.FormatUint(uint64(v), 10)}, true
	case uint16:
		return Tag{key, strconv.FormatUint(uint64(v), 10)}, true
	case uint32:
		return Tag{key, strconv.FormatUint(uint64(v), 10)}, true
	case uint64:
		return Tag{key, strconv.FormatUint(v, 10)}, true
	case float32:
		return Tag{key, strconv.FormatFloat(float64(v), 'f', -1, 32)}, true
	case float64:
		return Tag{key, strconv.FormatFloat(v, 'f', -1, 64)}, true
	case bool:
		return Tag{key, strconv.FormatBool(v)}, true
	case string:
		return Tag{key, v}, true
	case json.RawMessage:
		return Tag{key, string(v)}, true
	case []byte:
		return Tag{key, string(v)}, true
	case []string, []int, []int64, []float64, []bool:
		return Tag{key, string(JSON(v))}, true
	default:
		return Tag{}, false
	}
}

// JSON encodes v as a structured attribute value. An encoding failure is
// returned as a JSON string holding the error so the attribute survives.
func JSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal("unencodable: " + err.Error())
	}
	return b
}

// TagWriter converts attribute lists, reporting each dropped attribute to
// onDropped exactly once.
type TagWriter struct {
	onDropped func(key, typeName string)
}

func NewTagWriter(onDropped func(key, typeName string)) *TagWriter {
	if onDropped == nil {
		onDropped = func(string, string) {}
	}
	return &TagWriter{onDropped: onDropped}
}

func (w *TagWriter) Tags(attrs []Attribute) []Tag {
	tags := make([]Tag, 0, len(attrs))
	for _, a := range attrs {
		t, ok := Transform(a.Key, a.Value)
		if !ok {
			w.onDropped(a.Key, typeName(a.Value))
			continue
		}
		tags = append(tags, t)
	}
	return tags
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
