package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileDefaults are optional run defaults read from <root>/.cook.yaml. They
// sit below flags and environment variables in precedence.
type fileDefaults struct {
	Hosts  []string `yaml:"hosts"`
	Method string   `yaml:"method"`
	Format string   `yaml:"format"`
}

func readDefaults(root string) (fileDefaults, error) {
	path := filepath.Join(root, ".cook.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileDefaults{}, nil
		}
		return fileDefaults{}, fmt.Errorf("read %s: %w", path, err)
	}
	var defaults fileDefaults
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return fileDefaults{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return defaults, nil
}
