package broker

import (
	"context"
	"errors"

	"github.com/chinbo/chinbo-server/internal/common"
	"github.com/chinbo/chinbo-server/internal/server/models"
)

// dispatch routes one event according to the client's role. Events the
// role does not allow, a second hello included, are dropped.
func (h *Hub) dispatch(ctx context.Context, c *Client, env Envelope) {
	switch c.role {
	case roleNone:
		switch env.Event {
		case EventMasterHello:
			h.handleMasterHello(ctx, c, env)
		case EventOperatorHello:
			h.handleOperatorHello(ctx, c, env)
		default:
			h.ignore(ctx, c, env)
		}
	case roleMaster:
		switch env.Event {
		case EventMasterList:
			h.sendTo(ctx, c, EventMasterSnapshot, h.registry.BuildSnapshot())
		case EventMasterCreateOffice:
			h.handleCreateOffice(ctx, c, env)
		case EventMasterUpdateConfig:
			h.handleUpdateConfig(ctx, c, env)
		case EventMasterUpdatePcMeta:
			h.handleUpdatePcMeta(ctx, c, env)
		default:
			h.ignore(ctx, c, env)
		}
	case roleOperator:
		switch env.Event {
		case EventOperatorPing:
			h.handleOperatorPing(ctx, c)
		default:
			h.ignore(ctx, c, env)
		}
	}
}

func (h *Hub) ignore(ctx context.Context, c *Client, env Envelope) {
	h.logger.Debug(ctx, "event ignored", "conn_id", c.id, "event", env.Event)
}

func (h *Hub) handleMasterHello(ctx context.Context, c *Client, env Envelope) {
	var req MasterHello
	err := decodePayload(env.Data, &req)
	if err == nil {
		err = h.checkMaster(req)
	}
	if err != nil {
		h.logger.Warn(ctx, "master rejected", "conn_id", c.id, "error", err)
		h.sendTo(ctx, c, EventMasterAck, MasterAck{OK: false, Error: msgBadMasterToken})
		h.closeClient(c)
		return
	}

	session, err := h.gate.IssueMasterSession()
	if err != nil {
		h.logger.Error(ctx, "issuing master session failed", "error", err)
	}

	c.role = roleMaster
	h.masters[c] = struct{}{}
	h.masterCount.Add(1)
	h.logger.Info(ctx, "master connected", "conn_id", c.id)

	h.sendTo(ctx, c, EventMasterAck, MasterAck{OK: true, Session: session})
	h.sendTo(ctx, c, EventMasterSnapshot, h.registry.BuildSnapshot())
}

// checkMaster accepts a valid session token first and falls back to the
// credential.
func (h *Hub) checkMaster(req MasterHello) error {
	if req.Session != "" {
		if err := h.gate.CheckMasterSession(req.Session); err == nil {
			return nil
		}
	}
	return h.gate.CheckMaster(req.Token)
}

func (h *Hub) handleOperatorHello(ctx context.Context, c *Client, env Envelope) {
	var req OperatorHello
	if err := decodePayload(env.Data, &req); err != nil {
		h.rejectOperator(ctx, c, msgBadPayload, err)
		return
	}
	if req.Office == "" || req.PcID == "" {
		h.rejectOperator(ctx, c, msgMissingOperator, common.ErrInvalidPayload)
		return
	}
	meta, err := models.ParsePcPatch(req.Meta)
	if err != nil {
		h.rejectOperator(ctx, c, msgBadPayload, err)
		return
	}
	if err := h.gate.CheckOperator(req.Office, req.Token); err != nil {
		h.rejectOperator(ctx, c, msgBadOperatorToken, err)
		return
	}

	pc, err := h.registry.RegisterPc(ctx, req.Office, req.PcID, meta)
	if err != nil {
		h.rejectOperator(ctx, c, msgPersistFailed, err)
		return
	}
	office, ok := h.registry.Office(req.Office)
	if !ok {
		h.rejectOperator(ctx, c, msgPersistFailed, common.ErrNotFound)
		return
	}

	c.role = roleOperator
	c.office = req.Office
	c.pcID = req.PcID
	h.joinOffice(c)
	h.presence[pcKey{office: c.office, pcID: c.pcID}]++
	h.operatorCount.Add(1)
	h.logger.Info(ctx, "operator connected", "conn_id", c.id, "office", c.office, "pc_id", c.pcID)

	pcID := c.pcID
	h.sendTo(ctx, c, EventOperatorConfig, OperatorConfig{Office: c.office, PcID: &pcID, Config: office.Config})
	h.broadcastPcStatus(ctx, c.office, c.pcID, pc)
	h.broadcastSnapshot(ctx)
}

func (h *Hub) rejectOperator(ctx context.Context, c *Client, message string, err error) {
	h.logger.Warn(ctx, "operator rejected", "conn_id", c.id, "error", err)
	h.sendTo(ctx, c, EventOperatorNotify, OperatorNotify{Type: "error", Message: message})
	h.closeClient(c)
}

func (h *Hub) handleOperatorPing(ctx context.Context, c *Client) {
	pc, err := h.registry.SetPcStatus(ctx, c.office, c.pcID, true)
	if err != nil {
		h.logger.Error(ctx, "ping persist failed", "office", c.office, "pc_id", c.pcID, "error", err)
		return
	}
	h.broadcastPcStatus(ctx, c.office, c.pcID, pc)
}

func (h *Hub) handleCreateOffice(ctx context.Context, c *Client, env Envelope) {
	var req CreateOfficeRequest
	if err := decodePayload(env.Data, &req); err != nil || req.Office == "" {
		h.nack(ctx, c, common.ErrInvalidPayload)
		return
	}

	if _, err := h.registry.EnsureOffice(ctx, req.Office); err != nil {
		h.nack(ctx, c, err)
		return
	}

	h.broadcastSnapshot(ctx)
	h.sendTo(ctx, c, EventMasterAck, MasterAck{OK: true})
}

func (h *Hub) handleUpdateConfig(ctx context.Context, c *Client, env Envelope) {
	var req UpdateConfigRequest
	if err := decodePayload(env.Data, &req); err != nil {
		h.nack(ctx, c, err)
		return
	}
	if req.Office == "" {
		h.nack(ctx, c, common.ErrInvalidPayload)
		return
	}
	cfg, err := models.ParseConfiguration(req.Config)
	if err != nil {
		h.nack(ctx, c, err)
		return
	}

	cfg, err = h.registry.UpdateConfig(ctx, req.Office, cfg)
	if err != nil {
		h.nack(ctx, c, err)
		return
	}
	h.logger.Info(ctx, "config updated", "conn_id", c.id, "office", req.Office)

	h.broadcastOffice(ctx, req.Office, EventOperatorConfig, OperatorConfig{Office: req.Office, Config: cfg})
	h.broadcastSnapshot(ctx)
	h.sendTo(ctx, c, EventMasterAck, MasterAck{OK: true})
}

func (h *Hub) handleUpdatePcMeta(ctx context.Context, c *Client, env Envelope) {
	var req UpdatePcMetaRequest
	if err := decodePayload(env.Data, &req); err != nil {
		h.nack(ctx, c, err)
		return
	}
	if req.Office == "" || req.PcID == "" || len(req.Patch) == 0 {
		h.nack(ctx, c, common.ErrInvalidPayload)
		return
	}
	patch, err := models.ParsePcPatch(req.Patch)
	if err != nil {
		h.nack(ctx, c, err)
		return
	}

	if _, err := h.registry.UpdatePcMeta(ctx, req.Office, req.PcID, patch); err != nil {
		h.nack(ctx, c, err)
		return
	}

	h.broadcastSnapshot(ctx)
	h.sendTo(ctx, c, EventMasterAck, MasterAck{OK: true})
}

// nack reports a failed master action to the sender only.
func (h *Hub) nack(ctx context.Context, c *Client, err error) {
	message := msgBadPayload
	if errors.Is(err, common.ErrPersistence) {
		message = msgPersistFailed
	}
	h.logger.Warn(ctx, "master action failed", "conn_id", c.id, "error", err)
	h.sendTo(ctx, c, EventMasterAck, MasterAck{OK: false, Error: message})
}
