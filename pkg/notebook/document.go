package notebook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CellKind is a notebook cell type.
type CellKind string

const (
	CellCode     CellKind = "code"
	CellMarkdown CellKind = "markdown"
	CellRaw      CellKind = "raw"
)

// Known reports whether the cell kind is rendered by this package.
func (k CellKind) Known() bool {
	return k == CellCode || k == CellMarkdown
}

// Document is an executable notebook: an ordered list of cells.
type Document struct {
	Cells         []Cell          `json:"cells"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	NBFormat      int             `json:"nbformat,omitempty"`
	NBFormatMinor int             `json:"nbformat_minor,omitempty"`
}

// MarshalJSON fills in the nbformat fields a backend expects when the
// document was built without them.
func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	out := plain(d)
	if out.Cells == nil {
		out.Cells = []Cell{}
	}
	if len(out.Metadata) == 0 {
		out.Metadata = json.RawMessage(`{}`)
	}
	if out.NBFormat == 0 {
		out.NBFormat = 4
		if out.NBFormatMinor == 0 {
			out.NBFormatMinor = 5
		}
	}
	return json.Marshal(out)
}

// Cell is one markdown or code cell with its captured outputs.
type Cell struct {
	Kind           CellKind        `json:"cell_type"`
	ID             string          `json:"id,omitempty"`
	Source         string          `json:"source"`
	Outputs        []Output        `json:"outputs,omitempty"`
	ExecutionCount *int            `json:"execution_count,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

type cellJSON struct {
	Kind           CellKind          `json:"cell_type"`
	ID             string            `json:"id,omitempty"`
	Source         MultilineString   `json:"source"`
	Outputs        []json.RawMessage `json:"outputs,omitempty"`
	ExecutionCount *int              `json:"execution_count"`
	Metadata       json.RawMessage   `json:"metadata,omitempty"`
}

// UnmarshalJSON accepts source as a string or a list of line fragments.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var raw cellJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	outputs := make([]Output, 0, len(raw.Outputs))
	for i, o := range raw.Outputs {
		out, err := decodeOutput(o)
		if err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
		outputs = append(outputs, out)
	}
	*c = Cell{
		Kind:           raw.Kind,
		ID:             raw.ID,
		Source:         string(raw.Source),
		ExecutionCount: raw.ExecutionCount,
		Metadata:       raw.Metadata,
	}
	if len(outputs) > 0 {
		c.Outputs = outputs
	}
	return nil
}

// MarshalJSON writes the cell in nbformat 4 layout. Code cells always
// carry outputs and execution_count.
func (c Cell) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"cell_type": c.Kind,
		"source":    c.Source,
	}
	if c.ID != "" {
		m["id"] = c.ID
	}
	if len(c.Metadata) > 0 {
		m["metadata"] = c.Metadata
	} else {
		m["metadata"] = map[string]interface{}{}
	}
	if c.Kind == CellCode {
		outputs := c.Outputs
		if outputs == nil {
			outputs = []Output{}
		}
		m["outputs"] = outputs
		m["execution_count"] = c.ExecutionCount
	}
	return json.Marshal(m)
}

// MultilineString is a string that may be encoded as a list of fragments.
type MultilineString string

// UnmarshalJSON concatenates a fragment list, or takes a plain string.
// null decodes to the empty string.
func (s *MultilineString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*s = ""
		return nil
	}
	if trimmed[0] == '[' {
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*s = MultilineString(strings.Join(parts, ""))
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = MultilineString(str)
	return nil
}

// Parse decodes a notebook. Any structural problem is reported as a
// *ParseError.
func Parse(data []byte) (*Document, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &ParseError{Err: err}
	}
	if _, ok := probe["cells"]; !ok {
		return nil, &ParseError{Err: fmt.Errorf("missing cells")}
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	if doc.Cells == nil {
		doc.Cells = []Cell{}
	}
	return &doc, nil
}

// Encode writes the document as indented JSON.
func (d *Document) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", " ")
}

// WithCellSource returns a copy of d whose cell i has the given source.
// The receiver is not modified; cells other than i are shared by value.
// An out-of-range index returns d itself.
func (d *Document) WithCellSource(i int, source string) *Document {
	if d == nil || i < 0 || i >= len(d.Cells) {
		return d
	}
	next := *d
	next.Cells = make([]Cell, len(d.Cells))
	copy(next.Cells, d.Cells)
	next.Cells[i].Source = source
	return &next
}
