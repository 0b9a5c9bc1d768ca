package models

import "encoding/json"

// SnapshotPc is a PcRecord flattened together with its id.
type SnapshotPc struct {
	PcID string
	PcRecord
}

func (s SnapshotPc) MarshalJSON() ([]byte, error) {
	known := s.knownFields()
	known["pcId"] = s.PcID
	return joinObject(known, s.Meta)
}

func (s *SnapshotPc) UnmarshalJSON(data []byte) error {
	var id struct {
		PcID string `json:"pcId"`
	}
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	var rec PcRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	delete(rec.Meta, "pcId")
	if len(rec.Meta) == 0 {
		rec.Meta = nil
	}
	*s = SnapshotPc{PcID: id.PcID, PcRecord: rec}
	return nil
}

type SnapshotOffice struct {
	Office string        `json:"office"`
	Config Configuration `json:"config"`
	Tokens TokenPair     `json:"tokens"`
	Pcs    []SnapshotPc  `json:"pcs"`
}

// Snapshot is the cross-office view sent to masters.
type Snapshot struct {
	Offices   []SnapshotOffice `json:"offices"`
	PcsOnline int              `json:"pcsOnline"`
}
