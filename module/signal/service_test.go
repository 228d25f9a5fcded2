package signal

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"callbridge/module/call"
	"callbridge/module/presence"
	"callbridge/service/hub"
	"callbridge/tools/errs"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService() (*Service, *presence.Registry, *fakeClock) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	reg := presence.NewRegistry(presence.Conf{Timeout: 45 * time.Second, Clock: clk.Now})
	calls := call.NewTable(call.Conf{RingTimeout: 60 * time.Second, Clock: clk.Now})
	h := hub.New(nil)
	svc := NewService(calls, h, reg, clk.Now)
	return svc, reg, clk
}

// With nobody attached to the hub, every push fails and the mailbox keeps
// the copy, so the receiver still gets the offer by polling.
func TestOfferFallsBackToPoll(t *testing.T) {
	svc, reg, _ := newTestService()
	reg.MarkOnline(2, "bob")

	online, err := svc.PutOffer(1, 2, "offer-sdp")
	if err != nil {
		t.Fatal(err)
	}
	if !online {
		t.Fatal("receiver heartbeats, should be reported online")
	}

	res := svc.Poll(2)
	if res.SDP == nil || res.SDP.Kind != KindOffer || res.SDP.SDP != "offer-sdp" {
		t.Fatalf("poll result %+v", res)
	}
	if !svc.Poll(2).Empty() {
		t.Fatal("second poll must be empty")
	}
}

func TestOfferToOfflineReceiver(t *testing.T) {
	svc, _, _ := newTestService()

	online, err := svc.PutOffer(1, 2, "sdp")
	if err != nil {
		t.Fatal(err)
	}
	if online {
		t.Fatal("2 never heartbeated")
	}
	// the offer is still waiting for them
	if res := svc.Poll(2); res.SDP == nil {
		t.Fatal("offer should be queued regardless of presence")
	}
}

func TestAnswerLifecycleThroughPoll(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.PutOffer(1, 2, "offer"); err != nil {
		t.Fatal(err)
	}
	svc.Poll(2)
	if err := svc.PutAnswer(2, 1, "answer"); err != nil {
		t.Fatal(err)
	}

	sess, ok := svc.Status(1, 2)
	if !ok || sess.State != call.StateConnecting {
		t.Fatalf("want Connecting, got %+v ok=%v", sess, ok)
	}

	// the initiator consuming the answer is what activates the call
	res := svc.Poll(1)
	if res.SDP == nil || res.SDP.Kind != KindAnswer {
		t.Fatalf("initiator poll %+v", res)
	}
	sess, _ = svc.Status(1, 2)
	if sess.State != call.StateActive {
		t.Fatalf("want Active after answer delivery, got %v", sess.State)
	}
}

func TestAnswerWithoutCallIsStale(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.PutAnswer(2, 1, "answer")
	if !errors.Is(err, errs.ErrStaleSignal) {
		t.Fatalf("want StaleSignal, got %v", err)
	}
	if !svc.Poll(1).Empty() {
		t.Fatal("stale answer must not be stored")
	}
}

// Counter-offers resolve deterministically: the lower user id keeps the
// initiator role and the other side's pending signaling is wiped.
func TestGlareLowerIDWins(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.PutOffer(5, 3, "offer-from-5"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PutOffer(3, 5, "offer-from-3"); err != nil {
		t.Fatal(err)
	}

	sess, _ := svc.Status(3, 5)
	if sess.InitiatorID != 3 || sess.State != call.StateRinging {
		t.Fatalf("lower id must own the call: %+v", sess)
	}
	// 5's superseded offer is gone; only 3's survives
	if res := svc.Poll(3); !res.Empty() {
		t.Fatalf("loser's offer should be cleared, got %+v", res)
	}
	res := svc.Poll(5)
	if res.SDP == nil || res.SDP.SenderID != 3 {
		t.Fatalf("winner's offer missing: %+v", res)
	}
}

func TestGlareHigherInitiatorRejected(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.PutOffer(3, 5, "first"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.PutOffer(5, 3, "counter")
	if !errors.Is(err, errs.ErrGlare) {
		t.Fatalf("want Glare, got %v", err)
	}
	// the original offer is untouched
	if res := svc.Poll(5); res.SDP == nil || res.SDP.SenderID != 3 {
		t.Fatalf("original offer lost: %+v", res)
	}
}

func TestHangupClearsPairAndEndsSession(t *testing.T) {
	svc, _, _ := newTestService()

	svc.PutOffer(1, 2, "offer")
	svc.PutCandidate(1, 2, "cand")
	svc.Hangup(1, 2)

	if !svc.Poll(2).Empty() {
		t.Fatal("mailbox must be wiped on hangup")
	}
	sess, ok := svc.Status(1, 2)
	if !ok || sess.State != call.StateEnded || sess.EndReason != call.EndHungUp {
		t.Fatalf("session %+v ok=%v", sess, ok)
	}
}

func TestRejectRecordsWhoDeclined(t *testing.T) {
	svc, _, _ := newTestService()

	svc.PutOffer(1, 2, "offer")
	svc.Reject(2, 1)

	sess, _ := svc.Status(1, 2)
	if sess.EndReason != call.EndRejected || sess.EndedBy != 2 {
		t.Fatalf("session %+v", sess)
	}
}

func TestRingTimeoutEndsCallAndWipesSignaling(t *testing.T) {
	svc, _, clk := newTestService()

	svc.PutOffer(1, 2, "offer")
	clk.Advance(61 * time.Second)
	svc.ExpireRinging()

	sess, _ := svc.Status(1, 2)
	if sess.State != call.StateEnded || sess.EndReason != call.EndTimeout {
		t.Fatalf("session %+v", sess)
	}
	if !svc.Poll(2).Empty() {
		t.Fatal("timed-out offer must not be deliverable")
	}

	// a fresh call afterwards works
	if _, err := svc.PutOffer(1, 2, "again"); err != nil {
		t.Fatalf("new call after timeout: %v", err)
	}
}

func TestPresenceExpiryEndsCallAsDisconnected(t *testing.T) {
	svc, reg, clk := newTestService()
	reg.MarkOnline(1, "alice")
	reg.MarkOnline(2, "bob")

	svc.PutOffer(1, 2, "offer")
	svc.Poll(2)
	svc.PutAnswer(2, 1, "answer")
	svc.Poll(1)

	// bob stops heartbeating; alice keeps going
	clk.Advance(30 * time.Second)
	reg.Heartbeat(1)
	clk.Advance(20 * time.Second)
	reg.ExpireStale()

	sess, _ := svc.Status(1, 2)
	if sess.State != call.StateEnded || sess.EndReason != call.EndDisconnected || sess.EndedBy != 2 {
		t.Fatalf("session %+v", sess)
	}
}

func TestCandidatesDrainInOrder(t *testing.T) {
	svc, _, _ := newTestService()
	svc.PutOffer(1, 2, "offer")
	svc.PutCandidate(1, 2, "c0")
	svc.PutCandidate(1, 2, "c1")
	svc.PutCandidate(1, 2, "c2")

	res := svc.Poll(2)
	if len(res.Candidates) != 3 {
		t.Fatalf("got %d candidates", len(res.Candidates))
	}
	for i, want := range []string{"c0", "c1", "c2"} {
		if res.Candidates[i].Candidate != want {
			t.Fatalf("candidate %d = %q", i, res.Candidates[i].Candidate)
		}
	}
}
