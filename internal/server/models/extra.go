// Package models holds the persisted office aggregate and the read-only
// views derived from it.
package models

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Extra carries JSON fields the server does not interpret. They are kept
// verbatim so newer consoles can add fields without a server upgrade.
type Extra map[string]json.RawMessage

func (e Extra) clone() Extra {
	if e == nil {
		return nil
	}
	out := make(Extra, len(e))
	for k, v := range e {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// splitObject decodes a JSON object into its raw fields. Fields named in
// known are returned in the first map and removed from the second.
func splitObject(data []byte, known ...string) (map[string]json.RawMessage, Extra, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, nil, err
	}
	if all == nil {
		return nil, nil, fmt.Errorf("expected JSON object")
	}

	fields := make(map[string]json.RawMessage, len(known))
	for _, k := range known {
		if v, ok := all[k]; ok {
			fields[k] = v
			delete(all, k)
		}
	}
	if len(all) == 0 {
		all = nil
	}
	return fields, Extra(all), nil
}

// decodeField unmarshals fields[name] into dst when present.
func decodeField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}
	return nil
}

// joinObject marshals known fields together with extras. Known fields win
// over an extra of the same name.
func joinObject(known map[string]any, extra Extra) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(known)+len(extra))
	maps.Copy(out, extra)
	for k, v := range known {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = b
	}
	return json.Marshal(out)
}
