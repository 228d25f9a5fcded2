package presence

import (
	"net/http"

	midsec "callbridge/middleware/security"

	"github.com/gin-gonic/gin"
)

// Handler exposes presence over the REST boundary.
type Handler struct {
	reg *Registry
}

func NewHandler(reg *Registry) *Handler {
	return &Handler{reg: reg}
}

// Heartbeat refreshes the caller's presence. Always succeeds.
func (h *Handler) Heartbeat(c *gin.Context) {
	userID := midsec.UserID(c)
	if name := midsec.Username(c); name != "" {
		h.reg.MarkOnline(userID, name)
	} else {
		h.reg.Heartbeat(userID)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Offline is explicit logout: the entry drops immediately and the offline
// hooks tear down the channel and end live calls.
func (h *Handler) Offline(c *gin.Context) {
	h.reg.MarkOffline(midsec.UserID(c))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type onlineUser struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// Online lists everyone currently considered online, minus the caller.
func (h *Handler) Online(c *gin.Context) {
	self := midsec.UserID(c)
	entries := h.reg.ListOnline()
	users := make([]onlineUser, 0, len(entries))
	for _, e := range entries {
		if e.UserID == self {
			continue
		}
		users = append(users, onlineUser{UserID: e.UserID, Username: e.Username})
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
