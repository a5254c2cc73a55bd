package assets

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// lockFile is the subset of project.assets.json the reader needs.
type lockFile struct {
	Version int                           `json:"version"`
	Targets ordered[ordered[lockLibrary]] `json:"targets"`
	Project struct {
		Frameworks map[string]lockProjectFramework `json:"frameworks"`
	} `json:"project"`
}

type lockLibrary struct {
	Type                string            `json:"type"`
	Dependencies        map[string]string `json:"dependencies"`
	Compile             ordered[lockItem] `json:"compile"`
	Runtime             ordered[lockItem] `json:"runtime"`
	FrameworkAssemblies []string          `json:"frameworkAssemblies"`
}

type lockItem struct {
	Related string `json:"related,omitempty"`
}

type lockProjectFramework struct {
	Dependencies map[string]json.RawMessage `json:"dependencies"`
}

// ordered is a JSON object that keeps its keys in document order.
type ordered[V any] struct {
	Keys   []string
	Values []V
}

func (o *ordered[V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var v V
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		o.Keys = append(o.Keys, key)
		o.Values = append(o.Values, v)
	}
	_, err = dec.Token()
	return err
}

func (o *ordered[V]) get(key string) (V, bool) {
	for i, k := range o.Keys {
		if k == key {
			return o.Values[i], true
		}
	}
	var zero V
	return zero, false
}
