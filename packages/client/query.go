package client

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// JSONPath evaluates a gjson path against the body.
func (r *Response) JSONPath(path string) gjson.Result {
	return gjson.GetBytes(r.BodyBytes(), path)
}

// MatchesSchema validates the body against a JSON schema document.
func (r *Response) MatchesSchema(schema string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(r.BodyBytes()),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if result.Valid() {
		return nil
	}

	var errs []string
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return fmt.Errorf("body does not match schema: %s", strings.Join(errs, "; "))
}
