package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/skyline-data/apisync/internal/model"
)

// Auth types accepted in an API descriptor.
const (
	AuthNone   = "none"
	AuthAPIKey = "api_key"
	AuthBearer = "bearer"
)

// Pagination strategies accepted in an API descriptor.
const (
	PaginationNone     = "none"
	PaginationPage     = "page"
	PaginationCursor   = "cursor"
	PaginationNextLink = "next_link"
)

// APIConfig is the immutable descriptor for one REST API.
type APIConfig struct {
	Name        string            `yaml:"name"`
	BaseURL     string            `yaml:"base_url"`
	Endpoint    string            `yaml:"endpoint"`
	Params      map[string]string `yaml:"params"`
	Auth        AuthConfig        `yaml:"auth"`
	Pagination  PaginationConfig  `yaml:"pagination"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Mappings    []Mapping         `yaml:"mappings"`
	Schema      *model.Schema     `yaml:"schema"`
	OutputTable string            `yaml:"output_table"`
	UniqueKeys  []string          `yaml:"unique_keys"`
}

// AuthConfig describes how requests are authenticated. Credential is a
// reference resolved through the credential store, never the secret itself.
type AuthConfig struct {
	Type       string `yaml:"type"`
	KeyName    string `yaml:"key_name"`
	Credential string `yaml:"credential"`
}

// PaginationConfig selects one pagination strategy and its keys.
type PaginationConfig struct {
	Type        string `yaml:"type"`
	PageParam   string `yaml:"page_param"`
	StartPage   int    `yaml:"start_page"`
	CursorParam string `yaml:"cursor_param"`
	CursorKey   string `yaml:"cursor_key"`
	NextLinkKey string `yaml:"next_link_key"`
}

// RateLimitConfig paces requests at a fixed rate.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
}

// Mapping maps one dotted-path source field to a typed target column.
type Mapping struct {
	Source string          `yaml:"source"`
	Target string          `yaml:"target"`
	Type   model.FieldType `yaml:"type"`
	Format string          `yaml:"format,omitempty"`
	Scale  *float64        `yaml:"scale,omitempty"`
	Offset *float64        `yaml:"offset,omitempty"`
}

// LoadAPI reads and validates an API descriptor from a YAML file.
func LoadAPI(path string) (*APIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read api descriptor %s", path)
	}

	var cfg APIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrapf(err, "config: parse api descriptor %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrapf(err, "config: invalid api descriptor %s", path)
	}

	return &cfg, nil
}

// Validate checks structural requirements of the descriptor.
func (c *APIConfig) Validate() error {
	if c.Name == "" {
		return eris.New("name is required")
	}
	if c.BaseURL == "" {
		return eris.New("base_url is required")
	}
	if c.Endpoint == "" {
		return eris.New("endpoint is required")
	}

	switch c.Auth.Type {
	case "", AuthNone, AuthBearer:
	case AuthAPIKey:
		if c.Auth.KeyName == "" {
			return eris.New("auth: api_key requires key_name")
		}
	default:
		return eris.Errorf("auth: unknown type %q (valid: none, api_key, bearer)", c.Auth.Type)
	}

	switch c.Pagination.Type {
	case "", PaginationNone:
	case PaginationPage:
		if c.Pagination.PageParam == "" {
			return eris.New("pagination: page requires page_param")
		}
	case PaginationCursor:
		if c.Pagination.CursorParam == "" || c.Pagination.CursorKey == "" {
			return eris.New("pagination: cursor requires cursor_param and cursor_key")
		}
	case PaginationNextLink:
		if c.Pagination.NextLinkKey == "" {
			return eris.New("pagination: next_link requires next_link_key")
		}
	default:
		return eris.Errorf("pagination: unknown type %q (valid: none, page, cursor, next_link)", c.Pagination.Type)
	}

	for i, m := range c.Mappings {
		if m.Source == "" || m.Target == "" {
			return eris.Errorf("mappings[%d]: source and target are required", i)
		}
		if _, err := model.ParseFieldType(string(m.Type)); err != nil {
			return eris.Wrapf(err, "mappings[%d]", i)
		}
	}

	if c.Schema != nil {
		for _, col := range c.Schema.RequiredColumns {
			dt, ok := c.Schema.Dtypes[col]
			if !ok {
				return eris.Errorf("schema: required column %q has no dtype", col)
			}
			if _, err := model.ParseFieldType(string(dt)); err != nil {
				return eris.Wrapf(err, "schema: column %q", col)
			}
		}
	}

	return nil
}

// Table returns the destination table, defaulting to "<name>_events".
func (c *APIConfig) Table() string {
	if c.OutputTable != "" {
		return c.OutputTable
	}
	return c.Name + "_events"
}

// StartPage returns the first page number for the page strategy.
func (c *APIConfig) StartPage() int {
	if c.Pagination.StartPage > 0 {
		return c.Pagination.StartPage
	}
	return 1
}
