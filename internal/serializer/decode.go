package serializer

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
)

// decodeObject reads a JSON object keeping values raw, so every field can
// report its own type error
func decodeObject(body io.Reader) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage

	dec := json.NewDecoder(body)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Err: errors.New("empty body")}
		}
		return nil, &ParseError{Err: err}
	}

	if raw == nil {
		return nil, &ParseError{Err: errors.New("expected a JSON object")}
	}

	if dec.More() {
		return nil, &ParseError{Err: errors.New("unexpected data after JSON object")}
	}

	return raw, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func jsonKind(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "nothing"
	}

	switch raw[0] {
	case '"':
		return "string"
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "bool"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

func decodeString(raw json.RawMessage) (*string, string) {
	if isNull(raw) {
		return nil, msgNull
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, msgNotString
	}

	s = strings.TrimSpace(s)
	return &s, ""
}

// decodeInt accepts integral JSON numbers and numeric strings
func decodeInt(raw json.RawMessage) (*int64, bool) {
	switch jsonKind(raw) {
	case "number":
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, false
		}

		if v, err := n.Int64(); err == nil {
			return &v, true
		}

		f, err := n.Float64()
		if err != nil || f != float64(int64(f)) {
			return nil, false
		}

		v := int64(f)
		return &v, true
	case "string":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}

		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, false
		}

		return &v, true
	}

	return nil, false
}
