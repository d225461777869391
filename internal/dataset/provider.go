// Package dataset loads the healthcare operations data the map draws and
// keeps the current snapshot for readers.
package dataset

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"healthmap/core-go/internal/domain"
)

// Provider loads a complete, validated dataset.
type Provider interface {
	Load(ctx context.Context) (*domain.Dataset, error)
}

//go:embed mock.yaml
var mockYAML []byte

// YAMLProvider reads a dataset document from disk on every Load.
type YAMLProvider struct {
	Path string
}

func (p YAMLProvider) Load(ctx context.Context) (*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", p.Path, err)
	}
	d, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", p.Path, err)
	}
	return d, nil
}

type embedded struct{}

// Embedded returns the built-in demonstration dataset (Lagos).
func Embedded() Provider { return embedded{} }

func (embedded) Load(ctx context.Context) (*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Decode(mockYAML)
}

// Decode parses a YAML dataset document and validates it. Unknown keys are
// rejected so typos in hand-edited files surface early.
func Decode(raw []byte) (*domain.Dataset, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var d domain.Dataset
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrInvalidDataset, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}
