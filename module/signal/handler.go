package signal

import (
	"net/http"
	"strconv"

	midsec "callbridge/middleware/security"
	"callbridge/tools/errs"

	"github.com/gin-gonic/gin"
)

// Handler is the REST face of the signaling service. The sender of every
// operation is the authenticated caller; a client can never submit
// signaling on someone else's behalf.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type sdpReq struct {
	To   int64  `json:"to" binding:"required"`
	Type string `json:"type" binding:"required"` // offer | answer
	SDP  string `json:"sdp" binding:"required"`
}

func (h *Handler) SubmitSDP(c *gin.Context) {
	sender := midsec.UserID(c)
	var req sdpReq
	if err := c.ShouldBindJSON(&req); err != nil || req.To == sender {
		c.JSON(http.StatusBadRequest, errs.ErrInvalidRequest.WithDetail("to/type/sdp required"))
		return
	}

	switch Kind(req.Type) {
	case KindOffer:
		online, err := h.svc.PutOffer(sender, req.To, req.SDP)
		if err != nil {
			respondSignalErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "peerOnline": online})
	case KindAnswer:
		if err := h.svc.PutAnswer(sender, req.To, req.SDP); err != nil {
			respondSignalErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	default:
		c.JSON(http.StatusBadRequest, errs.ErrInvalidRequest.WithDetail("type must be offer or answer"))
	}
}

type candidateReq struct {
	To        int64  `json:"to" binding:"required"`
	Candidate string `json:"candidate" binding:"required"`
}

func (h *Handler) SubmitCandidate(c *gin.Context) {
	sender := midsec.UserID(c)
	var req candidateReq
	if err := c.ShouldBindJSON(&req); err != nil || req.To == sender {
		c.JSON(http.StatusBadRequest, errs.ErrInvalidRequest.WithDetail("to/candidate required"))
		return
	}
	h.svc.PutCandidate(sender, req.To, req.Candidate)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Poll drains and returns everything pending for the caller. Empty result
// is a normal 200.
func (h *Handler) Poll(c *gin.Context) {
	res := h.svc.Poll(midsec.UserID(c))
	c.JSON(http.StatusOK, res)
}

type peerReq struct {
	To int64 `json:"to" binding:"required"`
}

func (h *Handler) Hangup(c *gin.Context) {
	caller := midsec.UserID(c)
	var req peerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrInvalidRequest.WithDetail("to required"))
		return
	}
	h.svc.Hangup(caller, req.To)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) Reject(c *gin.Context) {
	rejecter := midsec.UserID(c)
	var req peerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrInvalidRequest.WithDetail("to required"))
		return
	}
	h.svc.Reject(rejecter, req.To)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// CallStatus reports the most recent session between the caller and peer,
// so the UI can show "rejected" vs "not answered" correctly.
func (h *Handler) CallStatus(c *gin.Context) {
	self := midsec.UserID(c)
	peer, err := strconv.ParseInt(c.Query("peer"), 10, 64)
	if err != nil || peer <= 0 {
		c.JSON(http.StatusBadRequest, errs.ErrInvalidRequest.WithDetail("peer required"))
		return
	}
	sess, ok := h.svc.Status(self, peer)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "none"})
		return
	}
	resp := gin.H{
		"status":    sess.State.String(),
		"initiator": sess.InitiatorID,
	}
	if sess.EndReason != "" {
		resp["reason"] = sess.EndReason
		if sess.EndedBy != 0 {
			resp["by"] = sess.EndedBy
		}
	}
	c.JSON(http.StatusOK, resp)
}

func respondSignalErr(c *gin.Context, err error) {
	if ce := errs.Unwrap(err); ce != nil {
		c.JSON(errs.HTTPStatus(ce.Code), ce)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
