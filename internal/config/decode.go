package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Decode parses a config file body. Files ending in .yaml or .yml are read
// as YAML, anything else as JSON. Both end up in the same JSON decoder, which
// rejects unknown keys and anything after the first document.
func Decode(path string, data []byte) (*Config, error) {
	name := filepath.Base(path)

	if isYAML(path) {
		j, err := yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		data = j
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	cfg := new(Config)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	end := dec.InputOffset()
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode %s: trailing data after offset %d", name, end)
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return json.Marshal(jsonCompatible(doc))
}

// jsonCompatible turns the map[any]any nodes YAML can produce into
// map[string]any.
func jsonCompatible(node any) any {
	switch n := node.(type) {
	case map[string]any:
		for k, v := range n {
			n[k] = jsonCompatible(v)
		}
		return n
	case map[any]any:
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[fmt.Sprint(k)] = jsonCompatible(v)
		}
		return out
	case []any:
		for i, v := range n {
			n[i] = jsonCompatible(v)
		}
		return n
	}
	return node
}
