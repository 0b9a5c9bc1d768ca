package models

import (
	"encoding/json"
	"fmt"

	"github.com/chinbo/chinbo-server/internal/common"
)

// PcRecord is the presence and metadata of one operator PC. LastSeen is in
// milliseconds since the Unix epoch.
type PcRecord struct {
	Name     string
	LastSeen int64
	Online   bool
	Meta     Extra
}

// NewPcRecord is the record created the first time a PC is referenced.
func NewPcRecord(pcID string) *PcRecord {
	return &PcRecord{Name: pcID}
}

func (p *PcRecord) UnmarshalJSON(data []byte) error {
	fields, extra, err := splitObject(data, "name", "lastSeen", "online")
	if err != nil {
		return err
	}
	out := PcRecord{Meta: extra}
	if err := decodeField(fields, "name", &out.Name); err != nil {
		return err
	}
	if err := decodeField(fields, "lastSeen", &out.LastSeen); err != nil {
		return err
	}
	if err := decodeField(fields, "online", &out.Online); err != nil {
		return err
	}
	*p = out
	return nil
}

func (p PcRecord) MarshalJSON() ([]byte, error) {
	return joinObject(p.knownFields(), p.Meta)
}

func (p PcRecord) knownFields() map[string]any {
	return map[string]any{"name": p.Name, "lastSeen": p.LastSeen, "online": p.Online}
}

func (p *PcRecord) Clone() *PcRecord {
	out := *p
	out.Meta = p.Meta.clone()
	return &out
}

// PcPatch is a metadata update sent by a master or carried in an operator
// hello. Keys map to raw JSON values.
type PcPatch Extra

// serverOwnedPcFields are computed by the server and never taken from a patch.
var serverOwnedPcFields = map[string]struct{}{
	"online":   {},
	"lastSeen": {},
	"pcId":     {},
}

// ParsePcPatch accepts a JSON object (or null/absent, meaning empty).
// Anything else wraps common.ErrInvalidPayload.
func ParsePcPatch(raw json.RawMessage) (PcPatch, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return PcPatch{}, nil
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, fmt.Errorf("%w: patch must be an object", common.ErrInvalidPayload)
	}
	if patch == nil {
		return PcPatch{}, nil
	}
	if name, ok := patch["name"]; ok {
		var s string
		if err := json.Unmarshal(name, &s); err != nil {
			return nil, fmt.Errorf("%w: patch.name must be a string", common.ErrInvalidPayload)
		}
	}
	return PcPatch(patch), nil
}

// Apply merges the patch over p. "name" overrides the display name, online,
// lastSeen and pcId are ignored, every other key is stored as metadata.
func (patch PcPatch) Apply(p *PcRecord) {
	for k, v := range patch {
		if _, owned := serverOwnedPcFields[k]; owned {
			continue
		}
		if k == "name" {
			var s string
			if json.Unmarshal(v, &s) == nil {
				p.Name = s
			}
			continue
		}
		if p.Meta == nil {
			p.Meta = Extra{}
		}
		p.Meta[k] = append(json.RawMessage(nil), v...)
	}
}
