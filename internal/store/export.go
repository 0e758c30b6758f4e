package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/memscope/internal/model"
)

// Export returns every record matching scope, oldest first, so an Import
// replays them in their original order.
func Export(ctx context.Context, s Store, scope model.Scope) ([]model.Record, error) {
	records, err := s.GetAll(ctx, ListParams{Scope: scope})
	if err != nil {
		return nil, err
	}
	slices.Reverse(records)
	return records, nil
}

// Import stores records from an export. Each record receives a fresh ID and
// timestamps; content, scope, type, importance and metadata are kept.
func Import(ctx context.Context, s Store, records []model.Record) (int, error) {
	imported := 0
	for _, r := range records {
		importance := r.Importance
		_, err := s.Add(ctx, AddParams{
			Content:    r.Content,
			Scope:      r.Scope,
			Type:       r.Type,
			Importance: &importance,
			Metadata:   r.Metadata,
		})
		if err != nil {
			return imported, fmt.Errorf("import record %s: %w", r.ID, err)
		}
		imported++
	}
	return imported, nil
}

// Encode writes records as indented JSON or YAML.
func Encode(w io.Writer, records []model.Record, format string) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(records)
	default:
		return NewInvalidArgument("unknown format %q (use json or yaml)", format)
	}
}

// Decode reads records written by Encode.
func Decode(r io.Reader, format string) ([]model.Record, error) {
	var records []model.Record
	switch format {
	case "", "json":
		if err := json.NewDecoder(r).Decode(&records); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case "yaml":
		if err := yaml.NewDecoder(r).Decode(&records); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, NewInvalidArgument("unknown format %q (use json or yaml)", format)
	}
	return records, nil
}
