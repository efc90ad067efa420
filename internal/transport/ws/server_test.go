package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"machinecraft.ai/internal/protocol"
	"machinecraft.ai/internal/sim/replica"
	"machinecraft.ai/internal/sim/tuning"
	"machinecraft.ai/internal/sim/world"
)

func startWorld(t *testing.T) (*world.World, context.Context) {
	t.Helper()
	w, err := world.New(world.WorldConfig{ID: "w1", TickRateHz: 200, Tuning: tuning.Defaults()})
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	// Placed before Run so it is part of the connect burst.
	if _, res := w.StepOnce(world.Command{Kind: world.CmdPlace, Pos: world.Vec3i{X: 1}, MachineKind: "SMELTER"}); res[0].Err != nil {
		t.Fatalf("place: %v", res[0].Err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	go func() { _ = w.Run(ctx) }()
	return w, ctx
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/replica"
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestServer_BurstThenLiveSync(t *testing.T) {
	w, ctx := startWorld(t)
	s := NewServer(w, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	c, err := Dial(ctx, wsURL(srv), "test", 0)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	wel := c.Welcome()
	if wel.WorldID != "w1" || wel.TickRateHz != 200 || len(wel.Tiers) != 3 {
		t.Fatalf("welcome=%+v", wel)
	}

	host := replica.NewHost(tuning.Defaults(), nil, nil)
	host.ApplyWelcome(wel)
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- c.Run(runCtx, host.Apply) }()

	waitFor(t, "connect burst", func() bool { return len(host.Views()) == 1 })
	waitFor(t, "client registered", func() bool { return s.Clients() == 1 })

	id, err := w.PlaceMachine(ctx, "SMELTER", world.Vec3i{X: 2})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	waitFor(t, "live sync", func() bool {
		_, ok := host.Get(id)
		return ok
	})

	if err := w.RemoveMachine(ctx, world.Vec3i{X: 2}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitFor(t, "remove", func() bool {
		_, ok := host.Get(id)
		return !ok
	})

	stop()
	<-done
	waitFor(t, "client detached", func() bool { return s.Clients() == 0 })
}

func TestServer_RejectsBadVersion(t *testing.T) {
	w, _ := startWorld(t)
	srv := httptest.NewServer(NewServer(w, nil).Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var e protocol.ErrorMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("read: %v", err)
	}
	if e.Type != protocol.TypeError || e.Code != protocol.ErrProtoVersion {
		t.Fatalf("error msg=%+v", e)
	}
}

func TestSendLatest_DropsOldest(t *testing.T) {
	ch := make(chan []byte, 2)
	if sendLatest(ch, []byte("a")) || sendLatest(ch, []byte("b")) {
		t.Fatalf("unexpected drop with free capacity")
	}
	if !sendLatest(ch, []byte("c")) {
		t.Fatalf("expected drop when full")
	}
	if got := string(<-ch) + string(<-ch); got != "bc" {
		t.Fatalf("queue=%q, want bc", got)
	}
}
