package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/chinbo/chinbo-server/internal/common"
)

// ButtonKind selects which variant a Button is.
type ButtonKind string

const (
	ButtonSimple ButtonKind = "simple" // copies Text to the clipboard
	ButtonFlip   ButtonKind = "flip"   // two-sided card, Front/Back
	ButtonRevin  ButtonKind = "revin"  // pick one of Values
)

// Button is a closed sum over the three kinds. Only the fields of the
// active kind are read and written; anything else lands in Extra.
type Button struct {
	ID    string
	Kind  ButtonKind
	Label string

	Text string

	Front string
	Back  string

	Values []string

	Extra Extra
}

var buttonCommonFields = []string{"id", "type", "label"}

func kindFields(k ButtonKind) []string {
	switch k {
	case ButtonSimple:
		return []string{"text"}
	case ButtonFlip:
		return []string{"front", "back"}
	case ButtonRevin:
		return []string{"values"}
	default:
		return nil
	}
}

// Validate rejects kinds outside the closed set.
func (b Button) Validate() error {
	switch b.Kind {
	case ButtonSimple, ButtonFlip, ButtonRevin:
		return nil
	default:
		return fmt.Errorf("%w: button %q has unknown type %q", common.ErrInvalidPayload, b.ID, b.Kind)
	}
}

func (b *Button) UnmarshalJSON(data []byte) error {
	var kind struct {
		Type ButtonKind `json:"type"`
	}
	if err := json.Unmarshal(data, &kind); err != nil {
		return err
	}

	known := append(append([]string{}, buttonCommonFields...), kindFields(kind.Type)...)
	fields, extra, err := splitObject(data, known...)
	if err != nil {
		return err
	}

	out := Button{Kind: kind.Type, Extra: extra}
	for name, dst := range map[string]any{
		"id":     &out.ID,
		"label":  &out.Label,
		"text":   &out.Text,
		"front":  &out.Front,
		"back":   &out.Back,
		"values": &out.Values,
	} {
		if err := decodeField(fields, name, dst); err != nil {
			return err
		}
	}

	*b = out
	return nil
}

func (b Button) MarshalJSON() ([]byte, error) {
	known := map[string]any{
		"id":    b.ID,
		"type":  b.Kind,
		"label": b.Label,
	}
	switch b.Kind {
	case ButtonSimple:
		known["text"] = b.Text
	case ButtonFlip:
		known["front"] = b.Front
		known["back"] = b.Back
	case ButtonRevin:
		values := b.Values
		if values == nil {
			values = []string{}
		}
		known["values"] = values
	}
	return joinObject(known, b.Extra)
}

func (b Button) clone() Button {
	out := b
	out.Values = append([]string(nil), b.Values...)
	out.Extra = b.Extra.clone()
	return out
}

type Group struct {
	ID      string
	Name    string
	Buttons []Button
	Extra   Extra
}

func (g *Group) UnmarshalJSON(data []byte) error {
	fields, extra, err := splitObject(data, "id", "name", "buttons")
	if err != nil {
		return err
	}
	out := Group{Extra: extra}
	if err := decodeField(fields, "id", &out.ID); err != nil {
		return err
	}
	if err := decodeField(fields, "name", &out.Name); err != nil {
		return err
	}
	if err := decodeField(fields, "buttons", &out.Buttons); err != nil {
		return err
	}
	*g = out
	return nil
}

func (g Group) MarshalJSON() ([]byte, error) {
	buttons := g.Buttons
	if buttons == nil {
		buttons = []Button{}
	}
	return joinObject(map[string]any{"id": g.ID, "name": g.Name, "buttons": buttons}, g.Extra)
}

type Settings struct {
	MasterPassword string
	Extra          Extra
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	fields, extra, err := splitObject(data, "masterPassword")
	if err != nil {
		return err
	}
	out := Settings{Extra: extra}
	if err := decodeField(fields, "masterPassword", &out.MasterPassword); err != nil {
		return err
	}
	*s = out
	return nil
}

func (s Settings) MarshalJSON() ([]byte, error) {
	return joinObject(map[string]any{"masterPassword": s.MasterPassword}, s.Extra)
}

// Configuration is the button panel shared by every PC of an office.
type Configuration struct {
	Settings Settings
	Groups   []Group
	Extra    Extra
}

func (c *Configuration) UnmarshalJSON(data []byte) error {
	fields, extra, err := splitObject(data, "settings", "groups")
	if err != nil {
		return err
	}
	out := Configuration{Extra: extra}
	if err := decodeField(fields, "settings", &out.Settings); err != nil {
		return err
	}
	if err := decodeField(fields, "groups", &out.Groups); err != nil {
		return err
	}
	*c = out
	return nil
}

func (c Configuration) MarshalJSON() ([]byte, error) {
	groups := c.Groups
	if groups == nil {
		groups = []Group{}
	}
	return joinObject(map[string]any{"settings": c.Settings, "groups": groups}, c.Extra)
}

// Validate checks every button against the closed kind set.
func (c Configuration) Validate() error {
	for _, g := range c.Groups {
		for _, b := range g.Buttons {
			if err := b.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c Configuration) Clone() Configuration {
	out := Configuration{
		Settings: Settings{MasterPassword: c.Settings.MasterPassword, Extra: c.Settings.Extra.clone()},
		Extra:    c.Extra.clone(),
	}
	if c.Groups != nil {
		out.Groups = make([]Group, len(c.Groups))
		for i, g := range c.Groups {
			ng := Group{ID: g.ID, Name: g.Name, Extra: g.Extra.clone()}
			if g.Buttons != nil {
				ng.Buttons = make([]Button, len(g.Buttons))
				for j, b := range g.Buttons {
					ng.Buttons[j] = b.clone()
				}
			}
			out.Groups[i] = ng
		}
	}
	return out
}

// ParseConfiguration decodes a configuration received from a client. The
// document must be an object whose "groups" member is an array, and every
// button must be of a known kind. Failures wrap common.ErrInvalidPayload.
func ParseConfiguration(raw json.RawMessage) (Configuration, error) {
	fields, _, err := splitObject(raw, "groups")
	if err != nil {
		return Configuration{}, fmt.Errorf("%w: config: %v", common.ErrInvalidPayload, err)
	}
	groups, ok := fields["groups"]
	if !ok || !isJSONArray(groups) {
		return Configuration{}, fmt.Errorf("%w: config.groups must be an array", common.ErrInvalidPayload)
	}

	var cfg Configuration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Configuration{}, fmt.Errorf("%w: config: %v", common.ErrInvalidPayload, err)
	}
	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
