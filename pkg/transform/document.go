package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"

	"github.com/ravi-parthasarathy/ingest/pkg/pipeline"
)

// JSONParser parses JSON documents. Comments and trailing commas are
// accepted.
type JSONParser struct {
	// UseNumber keeps numbers as json.Number instead of float64.
	UseNumber bool
}

func (p JSONParser) Parse(ctx context.Context, data []byte) (pipeline.StructuredValue, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.StructuredValue{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	if p.UseNumber {
		dec.UseNumber()
	}
	var v any
	if err := dec.Decode(&v); err != nil {
		return pipeline.StructuredValue{}, fmt.Errorf("parse json: %w", err)
	}
	if dec.More() {
		return pipeline.StructuredValue{}, fmt.Errorf("parse json: trailing data after top-level value")
	}
	return pipeline.StructuredValue{Value: v}, nil
}
