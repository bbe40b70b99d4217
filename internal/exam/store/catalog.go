package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"proctor/internal/exam/models"
	pmodels "proctor/internal/proctoring/models"
	id "proctor/pkg/domain"
)

type catalogFile struct {
	Tests []catalogEntry `yaml:"tests"`
}

type catalogEntry struct {
	ID                 string `yaml:"id"`
	Title              string `yaml:"title"`
	AllowedTabSwitches *int   `yaml:"allowedTabSwitches"`
	Practice           bool   `yaml:"practice"`
}

// ParseCatalog decodes a YAML test catalog. Every entry is validated and IDs
// must be unique.
func ParseCatalog(r io.Reader, now time.Time) ([]*models.Test, error) {
	var doc catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	seen := make(map[id.TestID]bool, len(doc.Tests))
	tests := make([]*models.Test, 0, len(doc.Tests))
	for i, e := range doc.Tests {
		testID, err := id.ParseTestID(e.ID)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i+1, err)
		}
		if seen[testID] {
			return nil, fmt.Errorf("catalog entry %d: duplicate test ID %s", i+1, testID)
		}
		seen[testID] = true
		if e.Title == "" {
			return nil, fmt.Errorf("catalog entry %d: title is required", i+1)
		}
		if _, err := pmodels.PolicyFromTest(e.AllowedTabSwitches); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i+1, err)
		}
		tests = append(tests, &models.Test{
			ID:                 testID,
			Title:              e.Title,
			AllowedTabSwitches: e.AllowedTabSwitches,
			Practice:           e.Practice,
			UpdatedAt:          now,
		})
	}
	return tests, nil
}

// LoadCatalog reads path and replaces the store contents with it.
func LoadCatalog(ctx context.Context, s *InMemoryTestStore, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	tests, err := ParseCatalog(f, time.Now())
	if err != nil {
		return 0, err
	}
	if err := s.ReplaceConfig(ctx, tests); err != nil {
		return 0, err
	}
	return len(tests), nil
}
