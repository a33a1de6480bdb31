package canonical

import (
	"bytes"
	"sort"
	"strconv"
	"unicode/utf8"
)

// value is a node of the canonical JSON tree.
type value interface {
	encode(buf *bytes.Buffer) error
}

type str string
type uinteger uint64
type null struct{}
type array []value

// object is written with keys sorted by byte value and no insignificant whitespace.
type object map[string]value

func (s str) encode(buf *bytes.Buffer) error {
	return writeString(buf, string(s))
}

func (n uinteger) encode(buf *bytes.Buffer) error {
	buf.WriteString(strconv.FormatUint(uint64(n), 10))
	return nil
}

func (null) encode(buf *bytes.Buffer) error {
	buf.WriteString("null")
	return nil
}

func (a array) encode(buf *bytes.Buffer) error {
	buf.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := v.encode(buf); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func (o object) encode(buf *bytes.Buffer) error {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := o[k].encode(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// writeString emits s with only the escapes JSON requires.
// Non-ASCII text is written as raw UTF-8.
func writeString(buf *bytes.Buffer, s string) error {
	if !utf8.ValidString(s) {
		return newError("string is not valid UTF-8: %q", s)
	}
	const hex = "0123456789abcdef"
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if c < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hex[c>>4])
				buf.WriteByte(hex[c&0xf])
				continue
			}
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('"')
	return nil
}
