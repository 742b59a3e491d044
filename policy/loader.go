package policy

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a standalone YAML policy document. Keys missing from the
// document keep the values of base.
func LoadFile(filename string, base Options) (*Policy, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data, base)
}

// Parse decodes a YAML policy document on top of base
func Parse(data []byte, base Options) (*Policy, error) {
	opts := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		return nil, fmt.Errorf("failed to decode policy: %w", err)
	}
	return New(opts)
}
