package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ravi-parthasarathy/ingest/pkg/pipeline"
)

// resultDoc is the JSON written by run --output.
type resultDoc struct {
	URI     string   `json:"uri"`
	Recipe  string   `json:"recipe"`
	State   string   `json:"state"`
	Status  int      `json:"status"`
	Error   string   `json:"error,omitempty"`
	Kind    string   `json:"kind"`
	Payload any      `json:"payload,omitempty"`
	Pending []string `json:"pending,omitempty"`
}

type entryDoc struct {
	Name  string `json:"name"`
	Bytes int    `json:"bytes"`
}

func describe(p *pipeline.Pipeline) resultDoc {
	res := p.Result()
	doc := resultDoc{
		URI:     p.URI(),
		Recipe:  p.Recipe().Name(),
		State:   p.State().String(),
		Status:  int(p.LastStatus()),
		Kind:    res.Kind,
		Payload: summarize(res.Payload),
		Pending: p.Pending(),
	}
	if err := p.Err(); err != nil {
		doc.Error = err.Error()
	}
	return doc
}

// summarize reduces a payload to JSON-friendly values. Byte buffers are
// reported by size only.
func summarize(p pipeline.Payload) any {
	switch v := p.(type) {
	case nil, pipeline.Empty:
		return nil
	case pipeline.RawBytes:
		return map[string]any{"bytes": len(v)}
	case pipeline.DecodedImage:
		return map[string]any{"format": v.Format, "width": v.Width, "height": v.Height, "bytes": len(v.Data)}
	case pipeline.DecompressedData:
		entries := make([]entryDoc, len(v.Entries))
		for i, e := range v.Entries {
			entries[i] = entryDoc{Name: e.Name, Bytes: len(e.Data)}
		}
		return map[string]any{"format": v.Format, "entries": entries}
	case pipeline.StructuredValue:
		return v.Value
	case pipeline.ErrorMarker:
		if v.Err == nil {
			return nil
		}
		return map[string]any{"error": v.Err.Error()}
	default:
		return fmt.Sprintf("%T", p)
	}
}

// writeOutputResult writes doc as indented JSON. An empty path is a no-op.
func writeOutputResult(path string, doc resultDoc) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write output %q: %w", path, err)
	}
	return nil
}
