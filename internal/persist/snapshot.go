package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FormatVersion is the snapshot document version written by this package.
const FormatVersion = 1

// Snapshot maps module ids to serialized state text, in a fixed order.
type Snapshot struct {
	ids   []string
	texts map[string]string
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{texts: make(map[string]string)}
}

// Put sets the text for id, keeping the position of an existing id.
func (s *Snapshot) Put(id, text string) {
	if _, exists := s.texts[id]; !exists {
		s.ids = append(s.ids, id)
	}
	s.texts[id] = text
}

// Get returns the text stored for id.
func (s *Snapshot) Get(id string) (string, bool) {
	text, ok := s.texts[id]
	return text, ok
}

// IDs returns module ids in snapshot order.
func (s *Snapshot) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Len returns the number of modules in the snapshot.
func (s *Snapshot) Len() int { return len(s.ids) }

type document struct {
	Version int             `json:"version"`
	Modules json.RawMessage `json:"modules"`
}

// MarshalJSON writes {"version":1,"modules":{...}} with module keys in
// snapshot order.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	var mods bytes.Buffer
	mods.WriteByte('{')
	for i, id := range s.ids {
		if i > 0 {
			mods.WriteByte(',')
		}
		k, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s.texts[id])
		if err != nil {
			return nil, err
		}
		mods.Write(k)
		mods.WriteByte(':')
		mods.Write(v)
	}
	mods.WriteByte('}')
	return json.Marshal(document{Version: FormatVersion, Modules: mods.Bytes()})
}

// UnmarshalJSON reads a snapshot document, keeping the module order found
// in the text.
func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("persist: malformed snapshot: %w", err)
	}
	if doc.Version != FormatVersion {
		return fmt.Errorf("persist: unsupported snapshot version %d", doc.Version)
	}

	fresh := NewSnapshot()
	if len(doc.Modules) == 0 || string(doc.Modules) == "null" {
		*s = *fresh
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(doc.Modules))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("persist: malformed modules: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("persist: modules must be an object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("persist: malformed modules: %w", err)
		}
		key, _ := keyTok.(string)
		var text string
		if err := dec.Decode(&text); err != nil {
			return fmt.Errorf("persist: module '%s': %w", key, err)
		}
		fresh.Put(key, text)
	}
	*s = *fresh
	return nil
}

// Parse decodes a snapshot document.
func Parse(text string) (*Snapshot, error) {
	s := NewSnapshot()
	if err := json.Unmarshal([]byte(text), s); err != nil {
		return nil, err
	}
	return s, nil
}

// String renders the snapshot document.
func (s *Snapshot) String() string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}
