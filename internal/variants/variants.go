// Package variants loads saved goodfire model/steering configurations from
// a directory of JSON files, one file per variant.
package variants

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"mentor-api/internal/metrics"
	"mentor-api/internal/shared"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Variant is a base model plus an optional steering controller. It is loaded
// fresh for every request and never mutated afterwards.
type Variant struct {
	Name       string          `json:"-"`
	BaseModel  string          `json:"base_model"`
	Controller json.RawMessage `json:"controller,omitempty"`
}

func (v *Variant) ModelID() string {
	return v.BaseModel
}

func (v *Variant) ControllerJSON() json.RawMessage {
	return v.Controller
}

type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Path resolves the file backing name. Callers must validate name first.
func (s *Store) Path(name string) string {
	return filepath.Join(s.Dir, name+".json")
}

func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", shared.ErrInvalidVariantName, name)
	}
	return nil
}

type readResult struct {
	data []byte
	err  error
}

// Load reads and validates the named variant. The file read is abandoned
// when ctx is done.
func (s *Store) Load(ctx context.Context, name string) (*Variant, error) {
	v, err := s.load(ctx, name)
	result := "ok"
	if err != nil {
		result = shared.ErrorKind(err)
	}
	metrics.VariantLoads.WithLabelValues(result).Inc()
	return v, err
}

func (s *Store) load(ctx context.Context, name string) (*Variant, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	path := s.Path(name)

	ch := make(chan readResult, 1)
	go func() {
		data, err := os.ReadFile(path)
		ch <- readResult{data: data, err: err}
	}()

	var res readResult
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("reading variant %s: %w", path, ctx.Err())
	case res = <-ch:
	}

	if errors.Is(res.err, fs.ErrNotExist) {
		return nil, &shared.VariantNotFoundError{Path: path}
	}
	if res.err != nil {
		return nil, fmt.Errorf("reading variant %s: %w", path, res.err)
	}

	v, err := Parse(res.data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrMalformedConfig, path, err)
	}
	v.Name = name
	return v, nil
}

// Parse decodes a variant document. Unknown fields, trailing data, a missing
// base_model and a non-object controller are all rejected.
func Parse(data []byte) (*Variant, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var v Variant
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after variant object")
	}
	if v.BaseModel == "" {
		return nil, errors.New("base_model is required")
	}
	if len(v.Controller) > 0 {
		trimmed := bytes.TrimSpace(v.Controller)
		if bytes.Equal(trimmed, []byte("null")) {
			v.Controller = nil
		} else if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, errors.New("controller must be an object")
		}
	}
	return &v, nil
}

// List returns the names of the variant files in the store directory. Files
// whose stem is not a valid variant name are skipped.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing variants in %s: %w", s.Dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		if ValidateName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
