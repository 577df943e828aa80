package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DecodeJSON parses one JSON object into an event keeping field order.
// Params: payload raw JSON bytes.
// Returns: decoded event or decode error.
func DecodeJSON(payload []byte) (*Event, error) {
	dec := newDecoder(bytes.NewReader(payload))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decode JSON: root must be an object")
	}

	fields, err := decodeObjectBody(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode JSON: unexpected data after root object")
	}
	return FromMap(fields), nil
}

// DecodeJSONStream parses concatenated JSON objects (NDJSON) or arrays of objects.
// Params: r payload reader; fn receives each event in stream order.
// Returns: number of delivered events and the first decode or callback error.
func DecodeJSONStream(r io.Reader, fn func(*Event) error) (int, error) {
	dec := newDecoder(r)
	count := 0

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("decode JSON: %w", err)
		}

		delim, ok := tok.(json.Delim)
		if !ok {
			return count, fmt.Errorf("decode JSON: events must be objects")
		}

		switch delim {
		case '{':
			fields, err := decodeObjectBody(dec)
			if err != nil {
				return count, fmt.Errorf("events[%d]: %w", count, err)
			}
			if err := fn(FromMap(fields)); err != nil {
				return count, err
			}
			count++
		case '[':
			for dec.More() {
				inner, err := dec.Token()
				if err != nil {
					return count, fmt.Errorf("events[%d]: decode JSON: %w", count, err)
				}
				if d, isDelim := inner.(json.Delim); !isDelim || d != '{' {
					return count, fmt.Errorf("events[%d]: decode JSON: events must be objects", count)
				}
				fields, err := decodeObjectBody(dec)
				if err != nil {
					return count, fmt.Errorf("events[%d]: %w", count, err)
				}
				if err := fn(FromMap(fields)); err != nil {
					return count, err
				}
				count++
			}
			if _, err := dec.Token(); err != nil {
				return count, fmt.Errorf("decode JSON: %w", err)
			}
		default:
			return count, fmt.Errorf("decode JSON: unexpected %q", delim)
		}
	}
}

func newDecoder(r io.Reader) *json.Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// decodeObjectBody reads object members after the opening brace.
// Params: dec positioned after '{'.
// Returns: ordered map or decode error.
func decodeObjectBody(dec *json.Decoder) (*Map, error) {
	fields := NewMap()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("decode JSON: object key must be string")
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		fields.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	return fields, nil
}

// decodeValue reads one JSON value of any shape.
// Params: dec positioned before a value.
// Returns: tagged value or decode error.
func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("decode JSON: %w", err)
	}

	switch typed := tok.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(typed), nil
	case bool:
		return Bool(typed), nil
	case json.Number:
		return numberValue(typed)
	case json.Delim:
		switch typed {
		case '{':
			nested, err := decodeObjectBody(dec)
			if err != nil {
				return Value{}, err
			}
			return MapValue(nested), nil
		case '[':
			items := make([]Value, 0)
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("decode JSON: %w", err)
			}
			return Value{kind: KindList, list: items}, nil
		}
	}
	return Value{}, fmt.Errorf("decode JSON: unexpected token %v", tok)
}

// numberValue keeps integer literals integral and everything else float.
// Params: number raw JSON number literal.
// Returns: Int or Float value.
func numberValue(number json.Number) (Value, error) {
	literal := number.String()
	if !strings.ContainsAny(literal, ".eE") {
		if n, err := number.Int64(); err == nil {
			return Int(n), nil
		}
	}
	f, err := number.Float64()
	if err != nil {
		return Value{}, fmt.Errorf("decode JSON number %q: %w", literal, err)
	}
	return Float(f), nil
}
