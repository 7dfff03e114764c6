package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog holds the product taxonomy. It can be overridden with a YAML
// file so categories can change without a redeploy.
type Catalog struct {
	Categories []string `yaml:"categories"`
}

var defaultCategories = []string{
	"Electronics",
	"Furniture",
	"Clothing",
	"Books",
	"Sports",
	"Toys",
	"Home & Garden",
	"Bikes",
	"Other",
}

// LoadCatalog reads the catalog file, or returns the built-in categories
// when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return &Catalog{Categories: defaultCategories}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	if len(cat.Categories) == 0 {
		cat.Categories = defaultCategories
	}
	return &cat, nil
}

// HasCategory reports whether name is part of the catalog.
func (c *Catalog) HasCategory(name string) bool {
	for _, cat := range c.Categories {
		if cat == name {
			return true
		}
	}
	return false
}
