package chat

import (
	"net/http"
	"strconv"

	midsec "callbridge/middleware/security"
	"callbridge/tools/errs"

	"github.com/gin-gonic/gin"
)

// Handler is the REST face of the chat service.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type sendReq struct {
	To      int64  `json:"to" binding:"required"`
	Content string `json:"content" binding:"required"`
}

func (h *Handler) Send(c *gin.Context) {
	sender := midsec.UserID(c)
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil || req.To == sender {
		c.JSON(http.StatusBadRequest, errs.ErrInvalidRequest.WithDetail("to/content required"))
		return
	}
	msg, err := h.svc.Send(c.Request.Context(), sender, req.To, req.Content)
	if err != nil {
		respondStoreErr(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) History(c *gin.Context) {
	self := midsec.UserID(c)
	peer, err := strconv.ParseInt(c.Query("peer"), 10, 64)
	if err != nil || peer <= 0 {
		c.JSON(http.StatusBadRequest, errs.ErrInvalidRequest.WithDetail("peer required"))
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	before, _ := strconv.ParseInt(c.Query("before"), 10, 64)

	msgs, err := h.svc.History(c.Request.Context(), self, peer, limit, before)
	if err != nil {
		respondStoreErr(c, err)
		return
	}
	next := int64(0)
	if len(msgs) > 0 {
		next = msgs[0].ID // oldest in this page, pass as `before` to go further back
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "nextBefore": next})
}

func (h *Handler) Unread(c *gin.Context) {
	counts, err := h.svc.UnreadSummary(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		respondStoreErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": counts})
}

type readReq struct {
	Peer int64 `json:"peer" binding:"required"`
}

func (h *Handler) MarkRead(c *gin.Context) {
	viewer := midsec.UserID(c)
	var req readReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrInvalidRequest.WithDetail("peer required"))
		return
	}
	if err := h.svc.MarkRead(c.Request.Context(), viewer, req.Peer); err != nil {
		respondStoreErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func respondStoreErr(c *gin.Context, err error) {
	if ce := errs.Unwrap(err); ce != nil {
		c.JSON(errs.HTTPStatus(ce.Code), ce)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
