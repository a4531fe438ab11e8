package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownType is returned when a type keyword is not recognised.
var ErrUnknownType = errors.New("unknown type keyword")

// ParseType converts a textual type to a Type.
// Supports "string", "number", "boolean", "primitive", "trigger", "unspecified",
// generics "<T>", streams "[T]" and maps "{a: T, \"{templated}\": T}".
// The empty string parses as Unspecified.
func ParseType(typeStr string) (Type, error) {
	p := &parser{src: typeStr}
	p.skipSpace()
	if p.eof() {
		return Unspecified(), nil
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, fmt.Errorf("type %q: unexpected %q at offset %d", typeStr, p.src[p.pos:], p.pos)
	}
	return t, nil
}

// MustParse is like ParseType but panics on error. Intended for tests and literals.
func MustParse(typeStr string) Type {
	t, err := ParseType(typeStr)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTypeMap converts a map of names to type strings into a Schema.
// Example: {"variables": "[string]", "limit": "number"}
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema)
	for key, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		result[key] = t
	}
	return result, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		if p.eof() {
			return fmt.Errorf("type %q: expected %q, got end of input", p.src, c)
		}
		return fmt.Errorf("type %q: expected %q at offset %d", p.src, c, p.pos)
	}
	p.pos++
	return nil
}

func (p *parser) parseType() (Type, error) {
	p.skipSpace()
	switch p.peek() {
	case '[':
		p.pos++
		sub, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		return Stream(sub), nil
	case '{':
		p.pos++
		return p.parseMap()
	case '<':
		p.pos++
		p.skipSpace()
		id := p.ident()
		if id == "" {
			return nil, fmt.Errorf("type %q: empty generic identifier", p.src)
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return Generic(id), nil
	}

	word := p.ident()
	switch word {
	case "string":
		return String(), nil
	case "number":
		return Number(), nil
	case "boolean":
		return Boolean(), nil
	case "primitive":
		return Primitive(), nil
	case "trigger":
		return Trigger(), nil
	case "unspecified":
		return Unspecified(), nil
	case "":
		return nil, fmt.Errorf("type %q: unexpected %q at offset %d", p.src, p.peek(), p.pos)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, word)
	}
}

func (p *parser) parseMap() (Type, error) {
	m := &MapType{}
	seen := make(map[string]bool)
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return m, nil
		}
		key, err := p.key()
		if err != nil {
			return nil, err
		}
		if seen[key] {
			return nil, fmt.Errorf("type %q: duplicate key %q", p.src, key)
		}
		seen[key] = true
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, Entry{Key: key, Type: t})

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
		default:
			return nil, fmt.Errorf("type %q: expected ',' or '}' at offset %d", p.src, p.pos)
		}
	}
}

func (p *parser) key() (string, error) {
	p.skipSpace()
	if p.peek() != '"' {
		k := p.ident()
		if k == "" {
			return "", fmt.Errorf("type %q: expected key at offset %d", p.src, p.pos)
		}
		return k, nil
	}
	p.pos++
	var sb strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++
		switch c {
		case '\\':
			if p.eof() {
				return "", fmt.Errorf("type %q: unterminated key", p.src)
			}
			sb.WriteByte(p.src[p.pos])
			p.pos++
		case '"':
			return sb.String(), nil
		default:
			sb.WriteByte(c)
		}
	}
	return "", fmt.Errorf("type %q: unterminated key", p.src)
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() && isIdentByte(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '-' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func formatKey(key string) string {
	if key == "" {
		return `""`
	}
	for i := 0; i < len(key); i++ {
		if !isIdentByte(key[i]) {
			return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(key) + `"`
		}
	}
	return key
}
