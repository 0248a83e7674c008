// Package seed loads insurance records from YAML fixtures.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/storage"
)

//go:embed demo.yaml
var demoFixture []byte

// IDKey is the fixture attribute that carries a record's id. It is removed
// from the stored attributes.
const IDKey = "id"

// Fixture lists records per collection.
type Fixture struct {
	Customers []map[string]any `yaml:"customers"`
	Policies  []map[string]any `yaml:"policies"`
	Claims    []map[string]any `yaml:"claims"`
	Documents []map[string]any `yaml:"documents"`
}

// Records returns the fixture's records of c.
func (f *Fixture) Records(c entity.Collection) []map[string]any {
	switch c {
	case entity.Customers:
		return f.Customers
	case entity.Policies:
		return f.Policies
	case entity.Claims:
		return f.Claims
	case entity.Documents:
		return f.Documents
	}
	return nil
}

// Len returns the number of records across collections.
func (f *Fixture) Len() int {
	return len(f.Customers) + len(f.Policies) + len(f.Claims) + len(f.Documents)
}

// Parse decodes a YAML fixture. Unknown top-level keys are rejected.
func Parse(data []byte) (*Fixture, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	for k := range raw {
		if _, err := entity.ParseCollection(k); err != nil {
			return nil, fmt.Errorf("parsing fixture: %w", err)
		}
	}

	f := &Fixture{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return f, nil
}

// LoadFile reads and parses the fixture at path.
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	return Parse(data)
}

// Demo returns the embedded demo fixture.
func Demo() (*Fixture, error) {
	return Parse(demoFixture)
}

// Creator persists one record. *records.Service implements it.
type Creator interface {
	Create(ctx context.Context, c entity.Collection, id string, attrs map[string]any) (*entity.Entity, error)
}

// Report counts the outcome of Apply.
type Report struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Apply creates every fixture record in collection order. Records whose id
// is already taken are skipped when skipExisting is set; otherwise the
// first conflict aborts.
func Apply(ctx context.Context, creator Creator, f *Fixture, skipExisting bool) (Report, error) {
	var rep Report
	for _, c := range entity.Collections() {
		for i, rec := range f.Records(c) {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			id, attrs := splitID(rec)
			_, err := creator.Create(ctx, c, id, attrs)
			switch {
			case err == nil:
				rep.Created++
			case skipExisting && errors.Is(err, storage.ErrAlreadyExists):
				rep.Skipped++
			default:
				return rep, fmt.Errorf("seeding %s[%d]: %w", c, i, err)
			}
		}
	}
	return rep, nil
}

func splitID(rec map[string]any) (string, map[string]any) {
	attrs := make(map[string]any, len(rec))
	var id string
	for k, v := range rec {
		if k == IDKey {
			id = fmt.Sprint(v)
			continue
		}
		attrs[k] = v
	}
	return id, attrs
}
