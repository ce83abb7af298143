// Package forms validates requested SEC filing form types against an
// accepted set, user-editable per data directory.
package forms

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed resources/form_types.json
var packagedFormTypes []byte

// ValidationError is returned when a requested form-type set is empty or
// contains members outside the accepted set.
type ValidationError struct {
	Unknown []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("forms: unknown/unsupported form types: %s", strings.Join(e.Unknown, ", "))
}

type formTypesFile struct {
	AcceptedFormTypes []string `json:"accepted_form_types"`
}

// relPath is where the user-editable catalog lives under a data directory.
const relPath = "config/form_types.json"

// EnsureFormTypesJSON guarantees {dataDir}/config/form_types.json exists,
// seeding it from the packaged default on first access, and returns its path.
func EnsureFormTypesJSON(dataDir string) (string, error) {
	outPath := filepath.Join(dataDir, relPath)
	if _, err := os.Stat(outPath); err == nil {
		return outPath, nil
	}

	var packaged formTypesFile
	if err := json.Unmarshal(packagedFormTypes, &packaged); err != nil {
		return "", fmt.Errorf("forms: invalid packaged form_types.json: %w", err)
	}
	sorted := uniqueSorted(packaged.AcceptedFormTypes)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(formTypesFile{AcceptedFormTypes: sorted}, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(outPath, append(out, '\n'), 0o644); err != nil {
		return "", err
	}
	return outPath, nil
}

// LoadAccepted loads the accepted form-type catalog for dataDir, seeding a
// user-editable copy on first access. Pass an empty dataDir to load the
// packaged default directly without touching disk.
func LoadAccepted(dataDir string) ([]string, error) {
	if dataDir == "" {
		var packaged formTypesFile
		if err := json.Unmarshal(packagedFormTypes, &packaged); err != nil {
			return nil, fmt.Errorf("forms: invalid packaged form_types.json: %w", err)
		}
		return uniqueSorted(packaged.AcceptedFormTypes), nil
	}

	path, err := EnsureFormTypesJSON(dataDir)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed formTypesFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ValidationError{Unknown: []string{fmt.Sprintf("invalid form types file %s: %v", path, err)}}
	}
	return uniqueSorted(parsed.AcceptedFormTypes), nil
}

// Validate checks that forms is non-empty and every member is in accepted.
func Validate(forms []string, accepted []string) ([]string, error) {
	acceptedSet := make(map[string]struct{}, len(accepted))
	for _, a := range accepted {
		acceptedSet[strings.TrimSpace(a)] = struct{}{}
	}

	var requested []string
	for _, f := range forms {
		f = strings.TrimSpace(f)
		if f != "" {
			requested = append(requested, f)
		}
	}
	if len(requested) == 0 {
		return nil, &ValidationError{Unknown: []string{"(forms must be a non-empty list)"}}
	}

	unknownSet := make(map[string]struct{})
	for _, f := range requested {
		if _, ok := acceptedSet[f]; !ok {
			unknownSet[f] = struct{}{}
		}
	}
	if len(unknownSet) > 0 {
		var unknown []string
		for f := range unknownSet {
			unknown = append(unknown, f)
		}
		sort.Strings(unknown)
		return nil, &ValidationError{Unknown: unknown}
	}
	return requested, nil
}

func uniqueSorted(in []string) []string {
	set := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
