// Package manifest extracts (name, description) from well-known
// project manifest files. It never writes and never fails the caller:
// a manifest that can't be parsed is treated the same as one that
// doesn't exist.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/montanetech/codeix-sub000/internal/model"
)

// Read tries, in order, package.json, Cargo.toml, pyproject.toml and
// go.mod at root, returning the first manifest found. It returns nil
// if none of the well-known files are present or parseable.
func Read(root string) *model.Manifest {
	if m := readPackageJSON(root); m != nil {
		return m
	}
	if m := readCargoToml(root); m != nil {
		return m
	}
	if m := readPyProject(root); m != nil {
		return m
	}
	if m := readGoMod(root); m != nil {
		return m
	}
	return nil
}

func readPackageJSON(root string) *model.Manifest {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return nil
	}
	var doc struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(data, &doc); err != nil || doc.Name == "" {
		return nil
	}
	return &model.Manifest{Name: doc.Name, Description: doc.Description}
}

func readCargoToml(root string) *model.Manifest {
	data, err := os.ReadFile(filepath.Join(root, "Cargo.toml"))
	if err != nil {
		return nil
	}
	var doc struct {
		Package struct {
			Name        string `toml:"name"`
			Description string `toml:"description"`
		} `toml:"package"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil || doc.Package.Name == "" {
		return nil
	}
	return &model.Manifest{Name: doc.Package.Name, Description: doc.Package.Description}
}

func readPyProject(root string) *model.Manifest {
	data, err := os.ReadFile(filepath.Join(root, "pyproject.toml"))
	if err != nil {
		return nil
	}
	var doc struct {
		Project struct {
			Name        string `toml:"name"`
			Description string `toml:"description"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Name        string `toml:"name"`
				Description string `toml:"description"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil
	}
	if doc.Project.Name != "" {
		return &model.Manifest{Name: doc.Project.Name, Description: doc.Project.Description}
	}
	if doc.Tool.Poetry.Name != "" {
		return &model.Manifest{Name: doc.Tool.Poetry.Name, Description: doc.Tool.Poetry.Description}
	}
	return nil
}

func readGoMod(root string) *model.Manifest {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return nil
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			name := strings.TrimSpace(strings.TrimPrefix(line, "module "))
			if name == "" {
				return nil
			}
			return &model.Manifest{Name: name}
		}
	}
	return nil
}
