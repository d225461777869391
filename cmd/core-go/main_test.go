package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"healthmap/core-go/internal/config"
	"healthmap/core-go/internal/dataset"
)

func TestPrintLayers_Journey(t *testing.T) {
	d, err := dataset.Embedded().Load(context.Background())
	if err != nil {
		t.Fatalf("load embedded dataset: %v", err)
	}

	var buf bytes.Buffer
	if err := printLayers(&buf, d, layersQuery{Variant: "journey", AppointmentID: "apt-1001"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var layers []struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(buf.Bytes(), &layers); err != nil {
		t.Fatalf("decode output: %v\n%s", err, buf.String())
	}
	if len(layers) != 1 || layers[0].Kind != "journey" {
		t.Fatalf("expected a single journey layer, got %+v", layers)
	}
}

func TestPrintLayers_Errors(t *testing.T) {
	d, err := dataset.Embedded().Load(context.Background())
	if err != nil {
		t.Fatalf("load embedded dataset: %v", err)
	}
	for name, q := range map[string]layersQuery{
		"variant":     {Variant: "heatmap"},
		"view mode":   {ViewMode: "satellite"},
		"appointment": {Variant: "journey", AppointmentID: "apt-missing"},
	} {
		var buf bytes.Buffer
		if err := printLayers(&buf, d, q); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestOpenProvider_PrefersYAMLOverEmbedded(t *testing.T) {
	p, pool, err := openProvider(context.Background(), &config.Config{DatasetPath: "testdata/none.yaml"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool != nil {
		t.Fatalf("expected no pool without DATABASE_URL")
	}
	if y, ok := p.(dataset.YAMLProvider); !ok || y.Path != "testdata/none.yaml" {
		t.Fatalf("expected YAML provider, got %T", p)
	}

	p, _, err = openProvider(context.Background(), &config.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Load(context.Background()); err != nil {
		t.Fatalf("embedded provider should load: %v", err)
	}
}

func TestNewInsightSource_Offline(t *testing.T) {
	src, closeFn, err := newInsightSource(context.Background(), &config.Config{}, zerologDiscard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if src == nil {
		t.Fatalf("expected an insight source")
	}
}

func zerologDiscard() zerolog.Logger {
	return zerolog.New(io.Discard)
}
