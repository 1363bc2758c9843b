package notebook

import "encoding/json"

// Clone returns a deep copy of d sharing no mutable storage with it. The
// copy is value-equal to d. Clone only knows the document's own data
// fields; it is not a general-purpose copier.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Metadata:      cloneRaw(d.Metadata),
		NBFormat:      d.NBFormat,
		NBFormatMinor: d.NBFormatMinor,
	}
	if d.Cells != nil {
		out.Cells = make([]Cell, len(d.Cells))
		for i := range d.Cells {
			out.Cells[i] = d.Cells[i].clone()
		}
	}
	return out
}

func (c Cell) clone() Cell {
	out := Cell{
		Kind:           c.Kind,
		ID:             c.ID,
		Source:         c.Source,
		ExecutionCount: cloneInt(c.ExecutionCount),
		Metadata:       cloneRaw(c.Metadata),
	}
	if c.Outputs != nil {
		out.Outputs = make([]Output, len(c.Outputs))
		for i, o := range c.Outputs {
			out.Outputs[i] = o.clone()
		}
	}
	return out
}

func (s *Stream) clone() Output {
	cp := *s
	return &cp
}

func (r *Result) clone() Output {
	return &Result{
		Type:           r.Type,
		Data:           r.Data.clone(),
		ExecutionCount: cloneInt(r.ExecutionCount),
		Metadata:       cloneRaw(r.Metadata),
	}
}

func (e *ErrorOutput) clone() Output {
	cp := &ErrorOutput{Name: e.Name, Message: e.Message}
	if e.Traceback != nil {
		cp.Traceback = append([]string(nil), e.Traceback...)
	}
	return cp
}

func (u *Unsupported) clone() Output {
	return &Unsupported{Type: u.Type, Raw: cloneRaw(u.Raw)}
}

func (m MIMEMap) clone() MIMEMap {
	var out MIMEMap
	if m.Values != nil {
		out.Values = make(map[MIMEType]string, len(m.Values))
		for k, v := range m.Values {
			out.Values[k] = v
		}
	}
	if m.Other != nil {
		out.Other = make(map[string]json.RawMessage, len(m.Other))
		for k, v := range m.Other {
			out.Other[k] = cloneRaw(v)
		}
	}
	return out
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage{}, r...)
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
