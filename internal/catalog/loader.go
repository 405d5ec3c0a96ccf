package catalog

import (
	"bytes"
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed queries.yaml
var defaultFS embed.FS

// file is the on-disk catalog layout.
type file struct {
	Queries []Query `yaml:"queries"`
}

// Parse decodes a YAML catalog. Unknown fields are rejected so typos in
// parameter schemas surface at load time.
func Parse(data []byte) (*Static, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(f.Queries) == 0 {
		return nil, fmt.Errorf("catalog defines no queries")
	}
	return New(f.Queries...)
}

// LoadFile reads and parses a YAML catalog from path.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Default returns the catalog compiled into the binary.
func Default() (*Static, error) {
	data, err := defaultFS.ReadFile("queries.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded catalog: %w", err)
	}
	return Parse(data)
}

// Load returns the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Static, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}
