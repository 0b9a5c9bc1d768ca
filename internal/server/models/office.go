package models

import "github.com/chinbo/chinbo-server/internal/common"

// TokenPair holds a master and an operator credential. Empty fields mean
// "use the global token".
type TokenPair struct {
	MasterToken string `json:"masterToken"`
	OpToken     string `json:"opToken"`
}

type Office struct {
	Config Configuration        `json:"config"`
	Pcs    map[string]*PcRecord `json:"pcs"`
	Tokens TokenPair            `json:"tokens"`
}

// NewOffice builds an office with the default configuration and a copy of
// the global tokens.
func NewOffice(global TokenPair) *Office {
	return &Office{
		Config: DefaultConfiguration(),
		Pcs:    map[string]*PcRecord{},
		Tokens: global,
	}
}

func (o *Office) Clone() *Office {
	out := &Office{
		Config: o.Config.Clone(),
		Pcs:    make(map[string]*PcRecord, len(o.Pcs)),
		Tokens: o.Tokens,
	}
	for id, pc := range o.Pcs {
		out.Pcs[id] = pc.Clone()
	}
	return out
}

// Document is the whole persisted dataset.
type Document struct {
	GlobalTokens TokenPair          `json:"globalTokens"`
	Offices      map[string]*Office `json:"offices"`
}

func (d *Document) Clone() *Document {
	out := &Document{
		GlobalTokens: d.GlobalTokens,
		Offices:      make(map[string]*Office, len(d.Offices)),
	}
	for name, o := range d.Offices {
		out.Offices[name] = o.Clone()
	}
	return out
}

// Normalize fills nil maps left by a sparse JSON document.
func (d *Document) Normalize() {
	if d.Offices == nil {
		d.Offices = map[string]*Office{}
	}
	for name, o := range d.Offices {
		if o == nil {
			o = &Office{}
			d.Offices[name] = o
		}
		if o.Pcs == nil {
			o.Pcs = map[string]*PcRecord{}
		}
		for id, pc := range o.Pcs {
			if pc == nil {
				o.Pcs[id] = NewPcRecord(id)
			}
		}
	}
}

// DefaultConfiguration returns a fresh copy of the starter button panel.
func DefaultConfiguration() Configuration {
	return Configuration{
		Groups: []Group{
			{
				ID:   "group_default",
				Name: "Grupo 1",
				Buttons: []Button{
					{ID: "btn_1", Kind: ButtonSimple, Label: "Hola 👋", Text: "Hola, ¿cómo estás?"},
					{ID: "btn_2", Kind: ButtonFlip, Label: "Tarjeta", Front: "Frente", Back: "Dorso"},
					{ID: "btn_3", Kind: ButtonRevin, Label: "Revin", Values: []string{"✅", "⏳", "❌"}},
				},
			},
		},
	}
}

// DefaultDocument returns a fresh seed document: the given global tokens and
// one office with a single known PC. Every call builds new values.
func DefaultDocument(global TokenPair) *Document {
	office := NewOffice(global)
	office.Pcs["pc_001"] = &PcRecord{Name: "PC 1"}
	return &Document{
		GlobalTokens: global,
		Offices:      map[string]*Office{common.DefaultOfficeName: office},
	}
}
