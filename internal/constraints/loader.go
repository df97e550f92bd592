package constraints

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawGroupFile is the on-disk YAML shape for one constraint group file.
type rawGroupFile struct {
	Type  string   `yaml:"type"` // "positive" or "negative"
	Items []string `yaml:"items"`
}

// LoadedGroup is a constraint group loaded from disk, fingerprinted with a
// content hash so a caller can detect when a file's contents changed
// between two loads without diffing its items.
type LoadedGroup struct {
	Path        string
	Type        Type
	Items       []string
	Fingerprint string
}

// LoadDir reads every *.yaml/*.yml file in dir as one constraint group and
// applies them to c. A missing directory is not an error: it means zero
// constraints are configured.
func LoadDir(dir string, c *Constraints) ([]LoadedGroup, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("constraints dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("constraints path %q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading constraints dir: %w", err)
	}

	var loaded []LoadedGroup
	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading constraint file %s: %w", path, err)
		}

		var raw rawGroupFile
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing constraint file %s: %w", path, err)
		}
		if len(raw.Items) == 0 {
			continue // skip empty / comment-only files
		}

		var t Type
		switch strings.ToLower(raw.Type) {
		case "", "positive":
			t = Positive
		case "negative":
			t = Negative
		default:
			return nil, fmt.Errorf("constraint file %s: unknown type %q", path, raw.Type)
		}

		if err := c.AddItemConstraint(raw.Items, t); err != nil {
			return nil, fmt.Errorf("constraint file %s: %w", path, err)
		}

		loaded = append(loaded, LoadedGroup{
			Path:        path,
			Type:        t,
			Items:       raw.Items,
			Fingerprint: fmt.Sprintf("%x", sha256.Sum256(data)),
		})
	}
	return loaded, nil
}
