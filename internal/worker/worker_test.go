package worker

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/bookfeed/internal/book"
	"github.com/rickgao/bookfeed/internal/decode"
	"github.com/rickgao/bookfeed/internal/model"
)

// mockFeedServer runs a test WebSocket feed. The handler is invoked per
// connection with a 1-based dial count.
func mockFeedServer(t *testing.T, handler func(conn *websocket.Conn, dial int)) (*httptest.Server, *atomic.Int32) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	var dials atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, int(dials.Add(1)))
	}))

	return server, &dials
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.Source = "alpha"
	cfg.BackoffBase = 10 * time.Millisecond
	cfg.BackoffMax = 50 * time.Millisecond
	cfg.BackoffResetAfter = time.Hour
	cfg.Client.URL = url
	cfg.Client.HandshakeTimeout = time.Second
	cfg.Client.BufferSize = 100
	return cfg
}

func newTestWorker(cfg Config) (*Worker, *book.Entry) {
	store := book.NewStore([]model.SourceID{cfg.Source})
	entry, _ := store.Entry(cfg.Source)
	return New(cfg, entry, decode.BookV1, nil, nil), entry
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestWorker_AppliesEvents(t *testing.T) {
	server, _ := mockFeedServer(t, func(conn *websocket.Conn, dial int) {
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"snapshot","bids":[["100.0","1"]],"asks":[["101.0","2"]]}`))
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"delta","bids":[["100.5","4"]],"asks":[]}`))

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		conn.ReadMessage()
	})
	defer server.Close()

	w, entry := newTestWorker(testConfig(wsURL(server)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		top := entry.Top()
		return top.Bid != nil && top.Bid.Price.String() == "100.5"
	}, "delta never applied on top of snapshot")

	if !entry.Live() {
		t.Error("entry not marked live while running")
	}
	if got := w.State(); got != StateRunning {
		t.Errorf("State = %v, want running", got)
	}

	cancel()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	if entry.Live() {
		t.Error("entry still live after stop")
	}
}

func TestWorker_SendsSubscriptions(t *testing.T) {
	subCh := make(chan string, 2)

	server, _ := mockFeedServer(t, func(conn *websocket.Conn, dial int) {
		for i := 0; i < 2; i++ {
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			subCh <- string(msg)
		}
		time.Sleep(time.Second)
	})
	defer server.Close()

	cfg := testConfig(wsURL(server))
	cfg.Subscriptions = []string{
		`{"op":"subscribe","channel":"book","ticket":"{ticket}"}`,
		`{"op":"subscribe","channel":"status"}`,
	}

	w, _ := newTestWorker(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case s := <-subCh:
			got = append(got, s)
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of 2 subscriptions", len(got))
		}
	}

	if !strings.Contains(got[0], `"channel":"book"`) {
		t.Errorf("first subscription = %q", got[0])
	}
	if strings.Contains(got[0], "{ticket}") {
		t.Errorf("ticket placeholder not expanded: %q", got[0])
	}
	if !strings.Contains(got[0], `"ticket":"`) {
		t.Errorf("no ticket value in %q", got[0])
	}
	if got[1] != `{"op":"subscribe","channel":"status"}` {
		t.Errorf("second subscription = %q", got[1])
	}
}

// The feed withholds data until the probe is answered, so the entry
// only ever fills if the worker replies before its next receive.
func TestWorker_RepliesToProbe(t *testing.T) {
	replyCh := make(chan string, 1)

	server, _ := mockFeedServer(t, func(conn *websocket.Conn, dial int) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","payload":7}`))

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, reply, err := conn.ReadMessage()
		if err != nil {
			return
		}
		replyCh <- string(reply)

		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"snapshot","bids":[["100.0","1"]],"asks":[["101.0","2"]]}`))
		time.Sleep(time.Second)
	})
	defer server.Close()

	cfg := testConfig(wsURL(server))
	cfg.ProbeReply = `{"pong":{payload}}`

	w, entry := newTestWorker(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	select {
	case reply := <-replyCh:
		if reply != `{"pong":7}` {
			t.Errorf("probe reply = %q, want {\"pong\":7}", reply)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no probe reply before the next frame")
	}

	waitFor(t, 2*time.Second, func() bool {
		return entry.Top().Bid != nil
	}, "snapshot after probe never applied")
}

func TestWorker_DecompressesFrames(t *testing.T) {
	gzipFrame := func(s string) []byte {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		zw.Write([]byte(s))
		zw.Close()
		return buf.Bytes()
	}

	server, _ := mockFeedServer(t, func(conn *websocket.Conn, dial int) {
		conn.WriteMessage(websocket.BinaryMessage,
			gzipFrame(`{"type":"snapshot","bids":[["100.0","1"]],"asks":[["101.0","2"]]}`))
		conn.WriteMessage(websocket.BinaryMessage,
			gzipFrame(`{"type":"delta","bids":[["100.5","4"]],"asks":[]}`))

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		conn.ReadMessage()
	})
	defer server.Close()

	cfg := testConfig(wsURL(server))
	decompress, err := decode.ForCompression("gzip")
	if err != nil {
		t.Fatalf("ForCompression: %v", err)
	}

	store := book.NewStore([]model.SourceID{cfg.Source})
	entry, _ := store.Entry(cfg.Source)
	w := New(cfg, entry, decode.BookV1, decompress, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		top := entry.Top()
		return top.Bid != nil && top.Bid.Price.String() == "100.5"
	}, "compressed frames never applied")

	if got := w.State(); got != StateRunning {
		t.Errorf("State = %v, want running", got)
	}
}

func TestWorker_DecodeFailuresBelowLimitContained(t *testing.T) {
	server, dials := mockFeedServer(t, func(conn *websocket.Conn, dial int) {
		conn.WriteMessage(websocket.TextMessage, []byte(`::garbage::`))
		conn.WriteMessage(websocket.TextMessage, []byte(`also not json`))
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"snapshot","bids":[["100.0","1"]],"asks":[["101.0","2"]]}`))

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		conn.ReadMessage()
	})
	defer server.Close()

	cfg := testConfig(wsURL(server))
	cfg.DecodeFailureLimit = 5

	w, entry := newTestWorker(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		return entry.Top().Bid != nil
	}, "snapshot after bad frames never applied")

	if got := dials.Load(); got != 1 {
		t.Errorf("dials = %d, want 1 (no reconnect below the limit)", got)
	}
	if got := w.State(); got != StateRunning {
		t.Errorf("State = %v, want running", got)
	}
}

func TestWorker_DecodeFailureLimitTriggersReconnect(t *testing.T) {
	server, dials := mockFeedServer(t, func(conn *websocket.Conn, dial int) {
		if dial == 1 {
			conn.WriteMessage(websocket.TextMessage, []byte(`::garbage::`))
			conn.WriteMessage(websocket.TextMessage, []byte(`::garbage::`))
			// Wait for the worker to drop us.
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			conn.ReadMessage()
			return
		}
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"snapshot","bids":[["100.0","1"]],"asks":[["101.0","2"]]}`))
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		conn.ReadMessage()
	})
	defer server.Close()

	cfg := testConfig(wsURL(server))
	cfg.DecodeFailureLimit = 2

	w, entry := newTestWorker(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	waitFor(t, 3*time.Second, func() bool {
		return entry.Top().Bid != nil
	}, "no data after reconnect")

	if got := dials.Load(); got < 2 {
		t.Errorf("dials = %d, want >= 2 (limit must force a reconnect)", got)
	}
	if w.Reconnects() < 1 {
		t.Errorf("Reconnects = %d, want >= 1", w.Reconnects())
	}
}

func TestWorker_ReconnectsOnServerClose(t *testing.T) {
	server, dials := mockFeedServer(t, func(conn *websocket.Conn, dial int) {
		if dial == 1 {
			conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"type":"snapshot","bids":[["100.0","1"]],"asks":[["101.0","2"]]}`))
			return // close immediately
		}
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"snapshot","bids":[["200.0","1"]],"asks":[["201.0","2"]]}`))
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		conn.ReadMessage()
	})
	defer server.Close()

	w, entry := newTestWorker(testConfig(wsURL(server)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	waitFor(t, 3*time.Second, func() bool {
		top := entry.Top()
		return top.Bid != nil && top.Bid.Price.String() == "200"
	}, "second connection's snapshot never applied")

	if got := dials.Load(); got < 2 {
		t.Errorf("dials = %d, want >= 2", got)
	}
	if w.Reconnects() < 1 {
		t.Errorf("Reconnects = %d, want >= 1", w.Reconnects())
	}
}

// Two refused dials escalate the backoff; a connection that then stays
// up past BackoffResetAfter earns a fresh schedule, so the next redial
// waits the initial delay again rather than the escalated one.
func TestWorker_SustainedUptimeResetsBackoff(t *testing.T) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	var dials atomic.Int32
	dialAt := make(chan time.Time, 8)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(dials.Add(1))
		dialAt <- time.Now()
		if n <= 2 {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if n == 3 {
			// Stay up long enough to count as sustained, then drop.
			time.Sleep(250 * time.Millisecond)
			return
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		conn.ReadMessage()
	}))
	defer server.Close()

	cfg := testConfig(wsURL(server))
	cfg.BackoffBase = 200 * time.Millisecond
	cfg.BackoffMax = 2 * time.Second
	cfg.BackoffResetAfter = 100 * time.Millisecond

	w, _ := newTestWorker(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	var times []time.Time
	for len(times) < 4 {
		select {
		case at := <-dialAt:
			times = append(times, at)
		case <-time.After(5 * time.Second):
			t.Fatalf("saw %d dials, want 4", len(times))
		}
	}

	// Dials 1 and 2 were refused, so dial 3 rode the escalated delay.
	if gap := times[2].Sub(times[1]); gap < 300*time.Millisecond {
		t.Fatalf("third dial after %v, want the escalated 400ms delay", gap)
	}

	// Dial 3 stayed up past BackoffResetAfter. Without the reset the
	// redial would wait 800ms on top of the 250ms the connection held.
	if gap := times[3].Sub(times[2]); gap > 700*time.Millisecond {
		t.Errorf("redial after sustained uptime took %v, want ~%v after the drop",
			gap, cfg.BackoffBase)
	}

	waitFor(t, 2*time.Second, func() bool { return w.State() == StateRunning },
		"worker never settled on the fourth connection")
}

// Cancellation must win even while the worker is stuck in its
// connect-and-backoff retry loop against a dead endpoint.
func TestWorker_CancelDuringBackoff(t *testing.T) {
	cfg := testConfig("ws://127.0.0.1:1")
	cfg.BackoffBase = 10 * time.Second // park the worker in one long sleep
	cfg.BackoffMax = 10 * time.Second
	cfg.Client.HandshakeTimeout = 100 * time.Millisecond

	w, _ := newTestWorker(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	// Let it fail the first dial and enter the backoff sleep.
	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("cancellation swallowed by the retry loop")
	}
	if got := w.State(); got != StateStopped {
		t.Errorf("State = %v, want stopped", got)
	}
}

func TestBuildProbeReply(t *testing.T) {
	tests := []struct {
		name     string
		template string
		payload  string
		want     string
	}{
		{"echo without template", "", "169", "169"},
		{"substituted payload", `{"pong":{payload}}`, "169", `{"pong":169}`},
		{"constant reply", `PONG`, "anything", "PONG"},
		{"empty payload with template", `{"pong":{payload}}`, "", `{"pong":}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildProbeReply(tt.template, []byte(tt.payload))
			if string(got) != tt.want {
				t.Errorf("buildProbeReply(%q, %q) = %q, want %q", tt.template, tt.payload, got, tt.want)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	states := map[State]string{
		StateCreated:      "created",
		StateConnecting:   "connecting",
		StateRunning:      "running",
		StateReconnecting: "reconnecting",
		StateStopped:      "stopped",
	}
	for s, want := range states {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}
