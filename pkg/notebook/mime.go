package notebook

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MIMEType identifies one representation of a rich output.
type MIMEType string

const (
	MIMEPNG   MIMEType = "image/png"
	MIMESVG   MIMEType = "image/svg+xml"
	MIMEHTML  MIMEType = "text/html"
	MIMEPlain MIMEType = "text/plain"
)

// Recognized lists the MIME types this package renders, in the order a
// representation is preferred when several are present.
var Recognized = []MIMEType{MIMEPNG, MIMESVG, MIMEHTML, MIMEPlain}

func recognized(key string) bool {
	for _, m := range Recognized {
		if string(m) == key {
			return true
		}
	}
	return false
}

// MIMEMap holds the representations of a rich output. Recognised types
// are decoded to text; anything else is kept verbatim in Other so it
// survives a round trip to the backend.
type MIMEMap struct {
	Values map[MIMEType]string
	Other  map[string]json.RawMessage
}

func decodeMIMEMap(data map[string]json.RawMessage) (MIMEMap, error) {
	mm := MIMEMap{Values: map[MIMEType]string{}}
	for key, raw := range data {
		if !recognized(key) {
			if mm.Other == nil {
				mm.Other = map[string]json.RawMessage{}
			}
			mm.Other[key] = raw
			continue
		}
		var s MultilineString
		if err := json.Unmarshal(raw, &s); err != nil {
			return MIMEMap{}, fmt.Errorf("mime %s: %w", key, err)
		}
		mm.Values[MIMEType(key)] = string(s)
	}
	return mm, nil
}

// MarshalJSON merges recognised and other representations into one object.
func (m MIMEMap) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Values)+len(m.Other))
	for k, v := range m.Other {
		out[k] = v
	}
	for k, v := range m.Values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[string(k)] = b
	}
	return json.Marshal(out)
}

// Keys returns every MIME key present, sorted.
func (m MIMEMap) Keys() []string {
	keys := make([]string, 0, len(m.Values)+len(m.Other))
	for k := range m.Values {
		keys = append(keys, string(k))
	}
	for k := range m.Other {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Preferred returns the first recognised representation in priority
// order. ErrUnsupportedKind is returned when none is present.
func (m MIMEMap) Preferred() (MIMEType, string, error) {
	for _, t := range Recognized {
		if v, ok := m.Values[t]; ok && v != "" {
			return t, v, nil
		}
	}
	return "", "", fmt.Errorf("%w: mime types %v", ErrUnsupportedKind, m.Keys())
}

// DecodePNG decodes a base64 image/png payload. Notebooks wrap base64 at
// line boundaries, so newlines are stripped first.
func DecodePNG(payload string) ([]byte, error) {
	clean := strings.NewReplacer("\n", "", "\r", "").Replace(payload)
	img, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("decode image/png: %w", err)
	}
	return img, nil
}
