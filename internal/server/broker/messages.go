package broker

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/chinbo/chinbo-server/internal/common"
	"github.com/chinbo/chinbo-server/internal/server/models"
)

// Event names.
const (
	EventMasterHello        = "master:hello"
	EventMasterAck          = "master:ack"
	EventMasterList         = "master:list"
	EventMasterSnapshot     = "master:snapshot"
	EventMasterCreateOffice = "master:createOffice"
	EventMasterUpdateConfig = "master:updateConfig"
	EventMasterUpdatePcMeta = "master:updatePcMeta"
	EventMasterPcStatus     = "master:pcStatus"

	EventOperatorHello  = "operator:hello"
	EventOperatorConfig = "operator:config"
	EventOperatorNotify = "operator:notify"
	EventOperatorPing   = "operator:ping"
)

// User-facing messages, shown as-is by the consoles.
const (
	msgBadMasterToken   = "Token master inválido"
	msgBadOperatorToken = "Token operador inválido"
	msgMissingOperator  = "office/pcId requeridos"
	msgBadPayload       = "Payload inválido"
	msgPersistFailed    = "No se pudo guardar"
)

// Envelope is one WebSocket text frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type MasterHello struct {
	Token   string `json:"token"`
	Session string `json:"session,omitempty"`
}

type MasterAck struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Session string `json:"session,omitempty"`
}

type CreateOfficeRequest struct {
	Office string `json:"office"`
}

type UpdateConfigRequest struct {
	Office string          `json:"office"`
	Config json.RawMessage `json:"config"`
}

type UpdatePcMetaRequest struct {
	Office string          `json:"office"`
	PcID   string          `json:"pcId"`
	Patch  json.RawMessage `json:"patch"`
}

type OperatorHello struct {
	Office string          `json:"office"`
	PcID   string          `json:"pcId"`
	Meta   json.RawMessage `json:"meta,omitempty"`
	Token  string          `json:"token"`
}

// OperatorConfig pushes a configuration. A nil PcID marshals as null and
// means the update applies to the whole office.
type OperatorConfig struct {
	Office string               `json:"office"`
	PcID   *string              `json:"pcId"`
	Config models.Configuration `json:"config"`
}

type OperatorNotify struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type PcStatus struct {
	Office   string `json:"office"`
	PcID     string `json:"pcId"`
	Online   bool   `json:"online"`
	LastSeen int64  `json:"lastSeen"`
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// decodePayload unmarshals data into dst. Absent or null data leaves dst at
// its zero value. Anything that is not an object wraps
// common.ErrInvalidPayload.
func decodePayload(data json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' {
		return fmt.Errorf("%w: payload must be an object", common.ErrInvalidPayload)
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidPayload, err)
	}
	return nil
}
