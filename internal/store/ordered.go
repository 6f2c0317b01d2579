package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// orderedObject is a JSON object that remembers the order of its keys.
type orderedObject struct {
	keys   []string
	values map[string]json.RawMessage
}

// decodeOrderedObject walks the top-level keys in document order. A repeated
// key keeps its first position and its last value.
func decodeOrderedObject(data []byte) (orderedObject, error) {
	if !gjson.ValidBytes(data) {
		return orderedObject{}, errors.New("invalid JSON document")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return orderedObject{}, errors.New("expected JSON object")
	}

	object := orderedObject{
		keys:   make([]string, 0),
		values: make(map[string]json.RawMessage),
	}
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if _, seen := object.values[name]; !seen {
			object.keys = append(object.keys, name)
		}
		object.values[name] = json.RawMessage(value.Raw)
		return true
	})
	return object, nil
}

// encodeOrderedObject renders key/value pairs in order. sjson appends each
// new key at the end of the object.
func encodeOrderedObject(keys []string, valueFor func(key string) any) ([]byte, error) {
	out := []byte("{}")
	for _, key := range keys {
		encodedValue, err := marshalNoEscape(valueFor(key))
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", key, err)
		}
		out, err = sjson.SetRawBytes(out, gjson.Escape(key), encodedValue)
		if err != nil {
			return nil, fmt.Errorf("set %q: %w", key, err)
		}
	}
	return out, nil
}

func marshalNoEscape(value any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func indentJSON(data []byte) ([]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON document")
	}
	out := pretty.PrettyOptions(data, &pretty.Options{Width: 80, Indent: "  "})
	return append(bytes.TrimRight(out, "\n"), '\n'), nil
}
