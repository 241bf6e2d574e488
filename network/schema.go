package network

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const inboundSchemaURL = "https://geoworld.local/schemas/inbound.schema.json"

//go:embed schemas/inbound.schema.json
var inboundSchema []byte

var (
	schemaOnce sync.Once
	schemaSet  map[string]*jsonschema.Schema
	schemaErr  error
)

func compileSchemas() (map[string]*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(inboundSchemaURL, bytes.NewReader(inboundSchema)); err != nil {
		return nil, fmt.Errorf("add inbound schema: %w", err)
	}

	set := make(map[string]*jsonschema.Schema, len(inboundTypes))
	for _, t := range inboundTypes {
		s, err := c.Compile(inboundSchemaURL + "#/$defs/" + t)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", t, err)
		}
		set[t] = s
	}
	return set, nil
}

// validateSchema checks a generically decoded message against the schema of
// its type.
func validateSchema(msgType string, doc interface{}) error {
	schemaOnce.Do(func() {
		schemaSet, schemaErr = compileSchemas()
	})
	if schemaErr != nil {
		return schemaErr
	}
	s, ok := schemaSet[msgType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, msgType)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}
