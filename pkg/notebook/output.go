package notebook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OutputType is the nbformat output_type of a captured output.
type OutputType string

const (
	OutputStream        OutputType = "stream"
	OutputExecuteResult OutputType = "execute_result"
	OutputDisplayData   OutputType = "display_data"
	OutputError         OutputType = "error"
)

// Output is one captured cell output. The set of implementations is
// closed: *Stream, *Result, *ErrorOutput and *Unsupported.
type Output interface {
	OutputType() OutputType
	clone() Output
}

// Stream is text written to stdout or stderr.
type Stream struct {
	Channel string // "stdout" or "stderr"
	Text    string
}

func (s *Stream) OutputType() OutputType { return OutputStream }

func (s *Stream) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"output_type": string(OutputStream),
		"name":        s.Channel,
		"text":        s.Text,
	})
}

// Result is a rich value: an execute_result or display_data output.
type Result struct {
	Type           OutputType // OutputExecuteResult or OutputDisplayData
	Data           MIMEMap
	ExecutionCount *int
	Metadata       json.RawMessage
}

func (r *Result) OutputType() OutputType { return r.Type }

func (r *Result) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"output_type": r.Type,
		"data":        r.Data,
	}
	if len(r.Metadata) > 0 {
		m["metadata"] = r.Metadata
	} else {
		m["metadata"] = map[string]interface{}{}
	}
	if r.Type == OutputExecuteResult {
		m["execution_count"] = r.ExecutionCount
	}
	return json.Marshal(m)
}

// ErrorOutput is an exception raised by a cell.
type ErrorOutput struct {
	Name      string
	Message   string
	Traceback []string
}

func (e *ErrorOutput) OutputType() OutputType { return OutputError }

func (e *ErrorOutput) MarshalJSON() ([]byte, error) {
	tb := e.Traceback
	if tb == nil {
		tb = []string{}
	}
	return json.Marshal(map[string]interface{}{
		"output_type": string(OutputError),
		"ename":       e.Name,
		"evalue":      e.Message,
		"traceback":   tb,
	})
}

// Unsupported keeps an output of an unrecognised type verbatim.
type Unsupported struct {
	Type OutputType
	Raw  json.RawMessage
}

func (u *Unsupported) OutputType() OutputType { return u.Type }

func (u *Unsupported) MarshalJSON() ([]byte, error) {
	if len(u.Raw) == 0 {
		return json.Marshal(map[string]string{"output_type": string(u.Type)})
	}
	return u.Raw, nil
}

type outputJSON struct {
	OutputType     OutputType                 `json:"output_type"`
	Name           string                     `json:"name"`
	Text           MultilineString            `json:"text"`
	Data           map[string]json.RawMessage `json:"data"`
	ExecutionCount *int                       `json:"execution_count"`
	Metadata       json.RawMessage            `json:"metadata"`
	EName          string                     `json:"ename"`
	EValue         string                     `json:"evalue"`
	Traceback      lineList                   `json:"traceback"`
}

func decodeOutput(data []byte) (Output, error) {
	var raw outputJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	switch raw.OutputType {
	case OutputStream:
		return &Stream{Channel: raw.Name, Text: string(raw.Text)}, nil
	case OutputExecuteResult, OutputDisplayData:
		mm, err := decodeMIMEMap(raw.Data)
		if err != nil {
			return nil, err
		}
		return &Result{
			Type:           raw.OutputType,
			Data:           mm,
			ExecutionCount: raw.ExecutionCount,
			Metadata:       raw.Metadata,
		}, nil
	case OutputError:
		return &ErrorOutput{Name: raw.EName, Message: raw.EValue, Traceback: []string(raw.Traceback)}, nil
	case "":
		return nil, fmt.Errorf("output without output_type")
	default:
		return &Unsupported{Type: raw.OutputType, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

// lineList decodes a list of lines, or a single string split at newlines.
type lineList []string

func (l *lineList) UnmarshalJSON(data []byte) error {
	var lines []string
	if err := json.Unmarshal(data, &lines); err == nil {
		*l = lines
		return nil
	}
	var s MultilineString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*l = nil
		return nil
	}
	*l = strings.Split(strings.TrimSuffix(string(s), "\n"), "\n")
	return nil
}
