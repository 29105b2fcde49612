package fs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/casebook/pkg/core"
)

// FormatVersion is written into every records file.
const FormatVersion = 1

// Serializer defines how to read and write the records file in one format.
type Serializer interface {
	Parse(r io.Reader) ([]core.Record, error)
	Serialize(records []core.Record) ([]byte, error)
}

// recordFile is the on-disk envelope.
type recordFile struct {
	Version int           `json:"version" yaml:"version"`
	Records []core.Record `json:"records" yaml:"records"`
}

// DefaultSerializers returns the supported formats keyed by extension.
func DefaultSerializers() map[string]Serializer {
	return map[string]Serializer{
		".yaml": YAMLSerializer{},
		".yml":  YAMLSerializer{},
		".json": JSONSerializer{},
	}
}

// SerializerFor picks the serializer matching the extension of filename.
func SerializerFor(filename string) (Serializer, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	s, ok := DefaultSerializers()[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported records format %q", ext)
	}
	return s, nil
}

func checkVersion(f recordFile) error {
	if f.Version > FormatVersion {
		return fmt.Errorf("records file version %d is newer than supported version %d", f.Version, FormatVersion)
	}
	for i, rec := range f.Records {
		if rec.ID.IsZero() {
			return fmt.Errorf("record %d has no id", i)
		}
	}
	return nil
}

// --- YAML Serializer ---

// YAMLSerializer handles records.yaml files.
type YAMLSerializer struct{}

func (YAMLSerializer) Parse(r io.Reader) ([]core.Record, error) {
	var f recordFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if err := checkVersion(f); err != nil {
		return nil, err
	}
	return f.Records, nil
}

func (YAMLSerializer) Serialize(records []core.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(recordFile{Version: FormatVersion, Records: nonNil(records)}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// --- JSON Serializer ---

// JSONSerializer handles records.json files.
type JSONSerializer struct{}

func (JSONSerializer) Parse(r io.Reader) ([]core.Record, error) {
	var f recordFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if err := checkVersion(f); err != nil {
		return nil, err
	}
	return f.Records, nil
}

func (JSONSerializer) Serialize(records []core.Record) ([]byte, error) {
	data, err := json.MarshalIndent(recordFile{Version: FormatVersion, Records: nonNil(records)}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func nonNil(records []core.Record) []core.Record {
	if records == nil {
		return []core.Record{}
	}
	return records
}
