// feedsim serves synthetic book.v1 websocket feeds for local development.
// Every request path gets its own random-walk book, so one process can
// back any number of configured sources:
//
//	go run ./cmd/feedsim --addr :9000
//	# then point sources at ws://localhost:9000/alpha, /beta, ...
package main

import (
	"context"
	"flag"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

func main() {
	addr := flag.String("addr", ":9000", "listen address")
	interval := flag.Duration("interval", 250*time.Millisecond, "delay between delta frames")
	levels := flag.Int("levels", 3, "book depth per side")
	pingEvery := flag.Int("ping-every", 20, "send a ping probe every N frames (0 disables)")
	snapshotEvery := flag.Int("snapshot-every", 100, "resend a full snapshot every N frames (0 disables)")
	dropAfter := flag.Int("drop-after", 0, "close each connection after N frames (0 never)")
	seed := flag.Int64("seed", 0, "random seed (0 uses current time)")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	sim := &simulator{
		ctx:           ctx,
		logger:        logger,
		interval:      *interval,
		levels:        *levels,
		pingEvery:     *pingEvery,
		snapshotEvery: *snapshotEvery,
		dropAfter:     *dropAfter,
		seed:          *seed,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	server := &http.Server{Addr: *addr, Handler: sim}
	go func() {
		logger.Info("feedsim listening", "addr", *addr, "interval", *interval, "seed", *seed)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Periodic stats so long soak runs show progress.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("stats",
					"connections", sim.conns.Load(),
					"frames_sent", sim.frames.Load(),
					"client_frames", sim.replies.Load(),
				)
			}
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	logger.Info("feedsim stopped",
		"connections", sim.conns.Load(),
		"frames_sent", sim.frames.Load(),
	)
}

type simulator struct {
	ctx           context.Context
	logger        *slog.Logger
	interval      time.Duration
	levels        int
	pingEvery     int
	snapshotEvery int
	dropAfter     int
	seed          int64
	upgrader      websocket.Upgrader

	conns   atomic.Int64
	frames  atomic.Int64
	replies atomic.Int64
}

func (s *simulator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" {
		name = "book"
	}
	go s.handle(conn, name)
}

// handle owns one client connection: snapshot first, then a stream of
// random-walk deltas with the occasional ping probe mixed in.
func (s *simulator) handle(conn *websocket.Conn, name string) {
	defer conn.Close()
	n := s.conns.Add(1)
	log := s.logger.With("feed", name, "remote", conn.RemoteAddr().String())
	log.Info("client connected")

	// Drain client frames: subscriptions on connect, probe replies later.
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.replies.Add(1)
			log.Debug("client frame", "raw", string(msg))
		}
	}()

	rng := rand.New(rand.NewSource(s.seed + n))
	book := newSyntheticBook(name, rng, s.levels)

	if err := s.send(conn, book.snapshot()); err != nil {
		log.Warn("send snapshot", "error", err)
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var sent, pings int64
	for {
		select {
		case <-s.ctx.Done():
			deadline := time.Now().Add(time.Second)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), deadline)
			return
		case <-ticker.C:
		}

		var frame wsFrame
		switch {
		case s.pingEvery > 0 && (sent+1)%int64(s.pingEvery) == 0:
			pings++
			frame = wsFrame{Type: "ping", Payload: pings}
		case s.snapshotEvery > 0 && (sent+1)%int64(s.snapshotEvery) == 0:
			frame = book.snapshot()
		default:
			frame = book.step(rng)
		}
		if err := s.send(conn, frame); err != nil {
			log.Info("client disconnected", "frames", sent, "error", err)
			return
		}
		sent++
		s.frames.Add(1)

		if s.dropAfter > 0 && sent >= int64(s.dropAfter) {
			log.Info("dropping connection", "frames", sent)
			return
		}
	}
}

func (s *simulator) send(conn *websocket.Conn, f wsFrame) error {
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(f)
}

// wsFrame is the outbound book.v1 frame layout.
type wsFrame struct {
	Type    string      `json:"type"`
	Bids    [][2]string `json:"bids,omitempty"`
	Asks    [][2]string `json:"asks,omitempty"`
	Payload int64       `json:"payload,omitempty"`
}

// simLevel is one price level, priced in integer hundredths.
type simLevel struct {
	ticks int64
	size  int64
}

// bookSide keeps levels best-first. dir is -1 for bids and +1 for asks,
// so best-dir always moves toward the opposite side.
type bookSide struct {
	levels []simLevel
	dir    int64
}

func (s *bookSide) best() simLevel { return s.levels[0] }

func (s *bookSide) resize(rng *rand.Rand) simLevel {
	i := rng.Intn(len(s.levels))
	s.levels[i].size = 1 + rng.Int63n(9)
	return s.levels[i]
}

func (s *bookSide) tighten(rng *rand.Rand) simLevel {
	lvl := simLevel{ticks: s.levels[0].ticks - s.dir, size: 1 + rng.Int63n(9)}
	s.levels = append([]simLevel{lvl}, s.levels...)
	return lvl
}

func (s *bookSide) dropBest() simLevel {
	lvl := s.levels[0]
	s.levels = s.levels[1:]
	return simLevel{ticks: lvl.ticks, size: 0}
}

type syntheticBook struct {
	bids bookSide
	asks bookSide
}

// newSyntheticBook seeds a two-sided book around a base price derived
// from the feed name, so /alpha and /beta trade at different levels.
func newSyntheticBook(name string, rng *rand.Rand, depth int) *syntheticBook {
	h := fnv.New32a()
	h.Write([]byte(name))
	base := 10000 + int64(h.Sum32()%4000)

	if depth < 1 {
		depth = 1
	}
	b := &syntheticBook{
		bids: bookSide{dir: -1},
		asks: bookSide{dir: 1},
	}
	for i := 0; i < depth; i++ {
		b.bids.levels = append(b.bids.levels, simLevel{ticks: base - 1 - int64(i), size: 1 + rng.Int63n(9)})
		b.asks.levels = append(b.asks.levels, simLevel{ticks: base + 1 + int64(i), size: 1 + rng.Int63n(9)})
	}
	return b
}

func (b *syntheticBook) spread() int64 {
	return b.asks.best().ticks - b.bids.best().ticks
}

func (b *syntheticBook) snapshot() wsFrame {
	f := wsFrame{Type: "snapshot"}
	for _, lvl := range b.bids.levels {
		f.Bids = append(f.Bids, pair(lvl))
	}
	for _, lvl := range b.asks.levels {
		f.Asks = append(f.Asks, pair(lvl))
	}
	return f
}

// step mutates one side and returns the matching delta frame. Ops cover
// the paths a real feed produces: resizing a level, a new best price,
// and removing the best price so the next level takes over.
func (b *syntheticBook) step(rng *rand.Rand) wsFrame {
	side := &b.asks
	if rng.Intn(2) == 0 {
		side = &b.bids
	}

	var lvl simLevel
	switch op := rng.Intn(3); {
	case op == 1 && b.spread() >= 2:
		lvl = side.tighten(rng)
	case op == 2 && len(side.levels) > 1:
		lvl = side.dropBest()
	default:
		lvl = side.resize(rng)
	}

	f := wsFrame{Type: "delta"}
	if side == &b.bids {
		f.Bids = [][2]string{pair(lvl)}
	} else {
		f.Asks = [][2]string{pair(lvl)}
	}
	return f
}

func pair(lvl simLevel) [2]string {
	return [2]string{
		decimal.New(lvl.ticks, -2).String(),
		strconv.FormatInt(lvl.size, 10),
	}
}
