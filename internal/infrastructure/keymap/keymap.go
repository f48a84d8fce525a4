// Package keymap loads the field rename tables and the target type table
// that drive record mapping and coercion.
package keymap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/erp/labelsync/internal/domain/integration"
)

// File names inside the key map directory
const (
	TypesFile = "hs_datatype_keymap.json"
)

// ErrUnknownFieldType is returned when the type table names an unsupported conversion
var ErrUnknownFieldType = errors.New("keymap: unknown field type")

// FieldsFile returns the rename table file name for kind, e.g. ITM_keymap.json
func FieldsFile(kind integration.DocumentKind) string {
	return string(kind) + "_keymap.json"
}

// Load reads the rename table of every document kind and the type table from dir
func Load(dir string) (integration.KeyMaps, error) {
	maps := integration.KeyMaps{Fields: make(map[integration.DocumentKind]integration.FieldMap)}

	for _, kind := range []integration.DocumentKind{integration.DocumentKindItem, integration.DocumentKindPromotion} {
		var fm integration.FieldMap
		if err := readJSON(filepath.Join(dir, FieldsFile(kind)), &fm); err != nil {
			return integration.KeyMaps{}, err
		}
		maps.Fields[kind] = fm
	}

	var raw map[string]string
	if err := readJSON(filepath.Join(dir, TypesFile), &raw); err != nil {
		return integration.KeyMaps{}, err
	}
	maps.Types = make(integration.TypeMap, len(raw))
	for field, name := range raw {
		ft := integration.FieldType(name)
		if !ft.IsValid() {
			return integration.KeyMaps{}, fmt.Errorf("%w: %s=%q", ErrUnknownFieldType, field, name)
		}
		maps.Types[field] = ft
	}
	return maps, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read key map: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse key map %s: %w", path, err)
	}
	return nil
}
