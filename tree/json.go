package tree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

// MaxDepth is the deepest nesting Parse accepts.
const MaxDepth = 512

var (
	compactAPI = jsoniter.Config{EscapeHTML: false}.Froze()
	indentAPI  = jsoniter.Config{EscapeHTML: false, IndentionStep: 2}.Froze()
)

// ParseFile reads and parses a JSON file.
func ParseFile(path string) (Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	v, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return v, nil
}

// Parse decodes a JSON document. Object key order is preserved; when a key
// repeats, it keeps its first position and takes the last value. Numbers
// keep their literal text.
func Parse(data []byte) (Value, error) {
	iter := jsoniter.ParseBytes(compactAPI, data)
	p := parser{iter: iter}
	v := p.value(0)
	if p.err != nil {
		return nil, p.err
	}
	if iter.Error != nil && iter.Error != io.EOF {
		return nil, fmt.Errorf("parsing JSON: %w", iter.Error)
	}
	if iter.WhatIsNext() != jsoniter.InvalidValue || iter.Error != io.EOF {
		return nil, errors.New("parsing JSON: unexpected data after top-level value")
	}
	return v, nil
}

type parser struct {
	iter *jsoniter.Iterator
	err  error
}

func (p *parser) failed() bool {
	if p.err != nil {
		return true
	}
	if p.iter.Error != nil && p.iter.Error != io.EOF {
		p.err = fmt.Errorf("parsing JSON: %w", p.iter.Error)
		return true
	}
	return false
}

func (p *parser) value(depth int) Value {
	if depth > MaxDepth {
		p.err = fmt.Errorf("parsing JSON: nesting deeper than %d levels", MaxDepth)
		return nil
	}
	iter := p.iter
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		m := NewMapping(0)
		ok := iter.ReadObjectCB(func(_ *jsoniter.Iterator, key string) bool {
			child := p.value(depth + 1)
			if p.failed() {
				return false
			}
			m.Set(key, child)
			return true
		})
		if !ok && !p.failed() {
			p.err = errors.New("parsing JSON: malformed object")
		}
		return m
	case jsoniter.ArrayValue:
		l := List{}
		ok := iter.ReadArrayCB(func(*jsoniter.Iterator) bool {
			child := p.value(depth + 1)
			if p.failed() {
				return false
			}
			l = append(l, child)
			return true
		})
		if !ok && !p.failed() {
			p.err = errors.New("parsing JSON: malformed array")
		}
		return l
	case jsoniter.StringValue:
		return String(iter.ReadString())
	case jsoniter.NumberValue:
		n := iter.ReadNumber()
		if p.failed() {
			return nil
		}
		// ReadNumber only collects number characters.
		if !json.Valid([]byte(n)) {
			p.err = fmt.Errorf("parsing JSON: invalid number %q", string(n))
			return nil
		}
		return Number(n)
	case jsoniter.BoolValue:
		return Bool(iter.ReadBool())
	case jsoniter.NilValue:
		iter.ReadNil()
		return Null()
	}
	if !p.failed() {
		p.err = errors.New("parsing JSON: unexpected character or end of input")
	}
	return nil
}

// Marshal encodes v as compact JSON.
func Marshal(v Value) ([]byte, error) {
	return encode(compactAPI, v)
}

// MarshalIndent encodes v with two-space indentation and a trailing newline.
func MarshalIndent(v Value) ([]byte, error) {
	data, err := encode(indentAPI, v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteFile writes v to path as indented JSON, creating parent directories.
func WriteFile(path string, v Value) error {
	data, err := MarshalIndent(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func encode(api jsoniter.API, v Value) ([]byte, error) {
	var buf bytes.Buffer
	stream := jsoniter.NewStream(api, &buf, 4096)
	writeValue(stream, v)
	if stream.Error != nil {
		return nil, fmt.Errorf("encoding JSON: %w", stream.Error)
	}
	if err := stream.Flush(); err != nil {
		return nil, fmt.Errorf("encoding JSON: %w", err)
	}
	return buf.Bytes(), nil
}

func writeValue(stream *jsoniter.Stream, v Value) {
	switch t := v.(type) {
	case *Mapping:
		if t.Len() == 0 {
			stream.WriteEmptyObject()
			return
		}
		stream.WriteObjectStart()
		first := true
		t.Range(func(k string, child Value) bool {
			if !first {
				stream.WriteMore()
			}
			first = false
			stream.WriteObjectField(k)
			writeValue(stream, child)
			return true
		})
		stream.WriteObjectEnd()
	case List:
		if len(t) == 0 {
			stream.WriteEmptyArray()
			return
		}
		stream.WriteArrayStart()
		for i, e := range t {
			if i > 0 {
				stream.WriteMore()
			}
			writeValue(stream, e)
		}
		stream.WriteArrayEnd()
	case Leaf:
		writeLeaf(stream, t)
	default:
		stream.WriteNil()
	}
}

func writeLeaf(stream *jsoniter.Stream, l Leaf) {
	switch s := l.v.(type) {
	case string:
		stream.WriteString(s)
	case bool:
		stream.WriteBool(s)
	case nil:
		stream.WriteNil()
	case json.Number:
		if s == "" {
			stream.WriteRaw("0")
			return
		}
		stream.WriteRaw(string(s))
	default:
		stream.WriteNil()
	}
}
