package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle-server/internal/core"
	"github.com/vovakirdan/huddle-server/internal/proto"
)

// APIHandlers serves the request/response fallback of the chat.
type APIHandlers struct {
	manager *core.Manager
	broker  *core.Broker
	log     *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(manager *core.Manager, broker *core.Broker, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		manager: manager,
		broker:  broker,
		log:     logger,
	}
}

func failure(c *gin.Context, status int, msg string) {
	c.JSON(status, proto.Response{Success: false, Error: msg})
}

// GetMessages returns the newest messages of the room, oldest first.
// GET /api/messages?limit=50
func (h *APIHandlers) GetMessages(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(core.DefaultHistoryLimit)))
	if err != nil {
		failure(c, http.StatusBadRequest, "invalid limit")
		return
	}

	room := h.manager.DefaultRoom()
	msgs, err := h.broker.Recent(c.Request.Context(), room, limit)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to load history")
		failure(c, http.StatusInternalServerError, "internal server error")
		return
	}

	c.JSON(http.StatusOK, proto.Response{Success: true, Data: messagesToProto(msgs)})
}

// PostMessage submits a message through the same broker path as the live channel.
// POST /api/messages
func (h *APIHandlers) PostMessage(c *gin.Context) {
	var req proto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid submit request")
		failure(c, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.broker.Submit(c.Request.Context(), h.manager.DefaultRoom(), req.Username, req.Message)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			failure(c, http.StatusBadRequest, verr.Error())
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to submit message")
		failure(c, http.StatusInternalServerError, "internal server error")
		return
	}

	c.JSON(http.StatusCreated, proto.Response{Success: true, Data: messageToProto(msg)})
}

// GetOnline lists the identities that currently hold at least one live connection.
// GET /api/online
func (h *APIHandlers) GetOnline(c *gin.Context) {
	c.JSON(http.StatusOK, proto.Response{Success: true, Data: h.manager.Online(h.manager.DefaultRoom())})
}
