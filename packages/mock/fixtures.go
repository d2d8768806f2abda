package mock

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FixtureFile is the YAML document loaded by Server.LoadFile.
//
//	routes:
//	  - name: get user
//	    method: GET
//	    path: /users/{{id}}
//	    status: 200
//	    body: '{"id": "{{id}}"}'
type FixtureFile struct {
	Routes []*Fixture `yaml:"routes"`
}

// Fixture describes one route and the response it produces. ContentType
// defaults to application/json for routes with a body.
type Fixture struct {
	Name        string            `yaml:"name,omitempty"`
	Method      string            `yaml:"method,omitempty"`
	Path        string            `yaml:"path"`
	Status      int               `yaml:"status,omitempty"`
	ContentType string            `yaml:"contentType,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Cookies     []FixtureCookie   `yaml:"cookies,omitempty"`
	Body        string            `yaml:"body,omitempty"`
	Echo        bool              `yaml:"echo,omitempty"`
}

// FixtureCookie is a Set-Cookie emitted by a fixture. A negative MaxAge
// deletes the cookie.
type FixtureCookie struct {
	Name   string `yaml:"name"`
	Value  string `yaml:"value"`
	Path   string `yaml:"path,omitempty"`
	MaxAge int    `yaml:"maxAge,omitempty"`
}

const (
	defaultStatus      = 200
	defaultContentType = "application/json"
)

// ParseFixtures decodes a fixture document and applies defaults.
func ParseFixtures(data []byte) (*FixtureFile, error) {
	var file FixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	for i, f := range file.Routes {
		if f == nil || f.Path == "" {
			return nil, fmt.Errorf("route %d: path is required", i)
		}
		if f.Status == 0 {
			f.Status = defaultStatus
		}
		if f.ContentType == "" && f.Body != "" {
			f.ContentType = defaultContentType
		}
	}

	return &file, nil
}

// LoadFixtures reads and parses a fixture file.
func LoadFixtures(path string) (*FixtureFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	file, err := ParseFixtures(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fixtures %s: %w", path, err)
	}
	return file, nil
}
