// Package codec converts values to and from the strings kept in a store.
//
// JSON is the default and matches what browser code writes to
// localStorage. YAML and TOML are available for stores that are edited by
// hand, such as a directory of files.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Codec serializes values to text and back.
type Codec interface {
	// Name returns the codec identifier used in configuration.
	Name() string

	// Marshal encodes v.
	Marshal(v any) (string, error)

	// Unmarshal decodes s into the value pointed to by v.
	Unmarshal(s string, v any) error
}

var (
	// JSON is the default codec.
	JSON Codec = jsonCodec{}

	// YAML encodes values as YAML documents.
	YAML Codec = yamlCodec{}

	// TOML encodes values as TOML tables. Only struct and map values can be
	// stored at the top level.
	TOML Codec = tomlCodec{}
)

var byName = map[string]Codec{
	"json": JSON,
	"yaml": YAML,
	"yml":  YAML,
	"toml": TOML,
}

// ByName returns the codec registered under name (case-insensitive).
func ByName(name string) (Codec, error) {
	c, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("codec: unknown codec %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return c, nil
}

// Names returns the registered codec names.
func Names() []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (jsonCodec) Unmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}

type yamlCodec struct{}

func (yamlCodec) Name() string { return "yaml" }

func (yamlCodec) Marshal(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (yamlCodec) Unmarshal(s string, v any) error {
	return yaml.Unmarshal([]byte(s), v)
}

type tomlCodec struct{}

func (tomlCodec) Name() string { return "toml" }

func (tomlCodec) Marshal(v any) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (tomlCodec) Unmarshal(s string, v any) error {
	_, err := toml.Decode(s, v)
	return err
}
