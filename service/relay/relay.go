package relay

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"callbridge/logger"
	"callbridge/service/hub"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "cb.evt."

// Subject returns the per-user event subject.
func Subject(userID int64) string {
	return subjectPrefix + strconv.FormatInt(userID, 10)
}

// UserFromSubject parses a per-user event subject back to a user id;
// returns 0 for anything malformed.
func UserFromSubject(subject string) int64 {
	raw, ok := strings.CutPrefix(subject, subjectPrefix)
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// Relay bridges gateways over NATS. When a user's push channel lives on
// another node, the hub hands the event here; every node subscribes to the
// event subjects and delivers whatever it holds a live channel for.
type Relay struct {
	nc        *nats.Conn
	gatewayID string
	sub       *nats.Subscription
}

func New(url, gatewayID string) (*Relay, error) {
	nc, err := nats.Connect(url,
		nats.Name("callbridge-"+gatewayID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Relay{nc: nc, gatewayID: gatewayID}, nil
}

// Publish implements hub.RemotePublisher.
func (r *Relay) Publish(userID int64, ev hub.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.nc.Publish(Subject(userID), data)
}

// Start subscribes to all event subjects and delivers inbound events to
// locally attached users. Nodes without the channel drop the event; the
// durable copy lives with the producer, so this stays best-effort.
func (r *Relay) Start(h *hub.Hub) error {
	sub, err := r.nc.Subscribe(subjectPrefix+">", func(m *nats.Msg) {
		userID := UserFromSubject(m.Subject)
		if userID == 0 || !h.IsConnected(userID) {
			return
		}
		var ev hub.Event
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			logger.Warnf("[relay] bad event on %s: %v", m.Subject, err)
			return
		}
		if err := h.SendLocal(userID, ev); err != nil {
			logger.Debug("[relay] local deliver failed: " + err.Error())
		}
	})
	if err != nil {
		return err
	}
	r.sub = sub
	return nil
}

func (r *Relay) Close() {
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
	}
	r.nc.Close()
}
