package sync

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/config"
)

// Mapping identifies one integration and fully determines the engine's
// behaviour for it. Mappings are plain data authored externally - the engine
// never interprets them beyond the documented schema.
type Mapping struct {
	Name         string
	Platform     string
	ConnectionID string
	ActionID     string
	Request      RequestTemplate
	Pagination   PaginationConfig
	Detail       *DetailConfig
	Record       RecordConfig
	ExternalRef  ExternalRefConfig
	Incremental  *IncrementalConfig
}

// RequestTemplate is the HTTP request template for the list endpoint.
// Body is a raw JSON document; for POST endpoints the pagination parameter
// is relocated into it.
type RequestTemplate struct {
	Method  string
	Path    string
	Query   map[string]string
	Body    string
	Headers map[string]string
}

// DetailConfig describes an optional per-item secondary fetch. The {id}
// placeholder in Path is substituted with the item's external id.
type DetailConfig struct {
	Method string
	Path   string
}

// RecordConfig describes the output record: its type, the field-mapping
// table (target field -> source path), tags and optional natural-key
// templates expanded against the mapped data.
type RecordConfig struct {
	Type        string            `yaml:"type"`
	Mapping     map[string]string `yaml:"mapping"`
	Tags        []string          `yaml:"tags"`
	NaturalKeys []string          `yaml:"naturalKeys"`
}

// ExternalRefConfig identifies records in the source system. IDField is the
// path to the external id on each item; URLTemplate builds a link back to
// the source record from the original (pre-mapping) item.
type ExternalRefConfig struct {
	System      string `yaml:"system"`
	IDField     string `yaml:"idField"`
	URLTemplate string `yaml:"urlTemplate"`
}

// MappingFile wraps a mapping document for the unmarshaler.
type MappingFile struct {
	Name   string
	Reader io.Reader
	Length int
}

// UnmarshalMapping loads a Mapping from one or more YAML sources, later
// sources overriding earlier ones. ${VAR} references are expanded from the
// environment.
func UnmarshalMapping(sources ...MappingFile) (Mapping, error) {
	var result Mapping
	var options []config.YAMLOption
	for _, s := range sources {
		if s.Length > 0 {
			options = append(options, config.Source(s.Reader))
		}
	}
	options = append(options, config.Expand(os.LookupEnv))
	yaml, err := config.NewYAML(options...)
	if err != nil {
		return result, fmt.Errorf("failed to read yaml mapping %w", err)
	}
	readError := func(key string, cause error) error {
		return fmt.Errorf("failed to read '%s' from yaml mapping %w", key, cause)
	}
	key := "name"
	if yaml.Get(key).HasValue() {
		result.Name = yaml.Get(key).String()
	}
	key = "platform"
	if yaml.Get(key).HasValue() {
		result.Platform = yaml.Get(key).String()
	}
	key = "connection"
	if yaml.Get(key).HasValue() {
		result.ConnectionID = yaml.Get(key).String()
	}
	key = "action"
	if yaml.Get(key).HasValue() {
		result.ActionID = yaml.Get(key).String()
	}
	key = "request"
	if yaml.Get(key).HasValue() {
		if err = yaml.Get(key).Populate(&result.Request); err != nil {
			return result, readError(key, err)
		}
	}
	key = "pagination"
	if yaml.Get(key).HasValue() {
		if err = yaml.Get(key).Populate(&result.Pagination); err != nil {
			return result, readError(key, err)
		}
	}
	key = "detail"
	if yaml.Get(key).HasValue() {
		if err = yaml.Get(key).Populate(&result.Detail); err != nil {
			return result, readError(key, err)
		}
	}
	key = "record"
	if yaml.Get(key).HasValue() {
		if err = yaml.Get(key).Populate(&result.Record); err != nil {
			return result, readError(key, err)
		}
	}
	key = "externalRef"
	if yaml.Get(key).HasValue() {
		if err = yaml.Get(key).Populate(&result.ExternalRef); err != nil {
			return result, readError(key, err)
		}
	}
	key = "incremental"
	if yaml.Get(key).HasValue() {
		if err = yaml.Get(key).Populate(&result.Incremental); err != nil {
			return result, readError(key, err)
		}
	}
	if result.Pagination.Type == "" {
		result.Pagination.Type = PaginationNone
	}
	return result, nil
}

// LoadMappingFile loads a Mapping from a YAML file on disk.
func LoadMappingFile(path string) (Mapping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Mapping{}, fmt.Errorf("failed to read mapping file %w", err)
	}
	m, err := UnmarshalMapping(MappingFile{
		Name:   path,
		Reader: bytes.NewReader(raw),
		Length: len(raw),
	})
	if err != nil {
		return m, err
	}
	if m.Name == "" {
		base := filepath.Base(path)
		m.Name = strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
	}
	return m, nil
}

// FindMappingFile locates the mapping file for a named mapping in dir.
// Multiple matches are a misconfiguration.
func FindMappingFile(dir string, name string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read mappings dir %w", err)
	}
	var found string
	for _, file := range files {
		p := file.Name()
		if !isMappingFilename(p) {
			continue
		}
		if strings.HasPrefix(p, name+".") {
			if found != "" {
				return "", fmt.Errorf("found multiple mapping files with prefix: %s in dir: %s", name, dir)
			}
			found = filepath.Join(dir, p)
		}
	}
	if found == "" {
		return "", fmt.Errorf("failed to find mapping file with prefix: %s in dir: %s", name, dir)
	}
	return found, nil
}

// ListMappingFiles returns the mapping files in dir sorted by name.
func ListMappingFiles(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read mappings dir %w", err)
	}
	var result []string
	for _, file := range files {
		if isMappingFilename(file.Name()) {
			result = append(result, filepath.Join(dir, file.Name()))
		}
	}
	sort.Strings(result)
	return result, nil
}

func isMappingFilename(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
