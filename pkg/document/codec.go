package document

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format is a document serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension. Anything that is not
// YAML is read as JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Marshal encodes doc in the given format.
func Marshal(doc *domain.Document, f Format) ([]byte, error) {
	if f == FormatYAML {
		return yaml.Marshal(doc)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Unmarshal decodes a document in the given format.
func Unmarshal(data []byte, f Format) (*domain.Document, error) {
	var doc domain.Document
	var err error
	if f == FormatYAML {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s document: %w", f, err)
	}
	return &doc, nil
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       schema.DecodeHook(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// DecodeDefinition fills a definition from loosely typed data such as
// frontmatter metadata.
func DecodeDefinition(input map[string]any) (domain.Definition, error) {
	var def domain.Definition
	if err := decode(input, &def); err != nil {
		return domain.Definition{}, fmt.Errorf("failed to decode definition: %w", err)
	}
	return def, nil
}

// DecodeDocument fills a document from loosely typed data.
func DecodeDocument(input map[string]any) (*domain.Document, error) {
	var doc domain.Document
	if err := decode(input, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &doc, nil
}
