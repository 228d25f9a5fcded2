package user

import (
	"net/http"

	"callbridge/module/presence"
	"callbridge/tools/errs"
	sec "callbridge/tools/security"

	"github.com/gin-gonic/gin"
)

// Handler issues session tokens. Credential verification lives in the
// external auth service; by the time a login request reaches the relay the
// caller is already authenticated, so this only mints the token the push
// channel and REST calls will present.
type Handler struct {
	jwt sec.Options
	reg *presence.Registry
}

func NewHandler(jwt sec.Options, reg *presence.Registry) *Handler {
	return &Handler{jwt: jwt, reg: reg}
}

type loginReq struct {
	UserID   int64  `json:"userId" binding:"required"`
	Username string `json:"username"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID <= 0 {
		c.JSON(http.StatusBadRequest, errs.ErrInvalidRequest.WithDetail("userId required"))
		return
	}
	token, exp, err := sec.Generate(h.jwt, req.UserID, req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errs.ErrInvalidRequest.WithDetail(err.Error()))
		return
	}
	h.reg.MarkOnline(req.UserID, req.Username)
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"expireAt": exp.UnixMilli(),
		"user":     gin.H{"id": req.UserID, "name": req.Username},
	})
}
