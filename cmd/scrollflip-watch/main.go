package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// scrollflip-watch subscribes to the daemon's state websocket and prints
// state changes as they happen. Useful for tuning classifier thresholds:
// scroll with the device in question and watch the classification flip.

// envelope mirrors the daemon's websocket message framing (duplicated for a
// standalone binary)
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type stateInit struct {
	Classification string `json:"classification"`
	Enabled        bool   `json:"enabled"`
	HistoryLen     int    `json:"history_len"`
	SamplesTotal   uint64 `json:"samples_total"`
	InvertedTotal  uint64 `json:"inverted_total"`
}

type classificationChanged struct {
	Classification string `json:"classification"`
}

type sampleStats struct {
	SamplesTotal  uint64 `json:"samples_total"`
	InvertedTotal uint64 `json:"inverted_total"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:7474/ws/state", "scrollflip state websocket URL")
		stats = flag.Bool("stats", false, "Also print periodic sample counters")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	// Handle shutdown
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Mutex to protect concurrent writes to websocket
	var writeMu sync.Mutex

	// Ping/pong keeps the connection alive through idle periods
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(20 * time.Second)
	defer pingTicker.Stop()

	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		}
	}()

	// Message reading loop
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}

			if messageType != websocket.TextMessage {
				continue
			}

			handleMessage(message, *stats)
		}
	}()

	// Wait for shutdown signal or connection close
	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

func handleMessage(message []byte, showStats bool) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}

	switch env.Type {
	case "state_init":
		var s stateInit
		if err := json.Unmarshal(env.Data, &s); err != nil {
			fmt.Printf("[STATE] unparseable: %s\n", string(env.Data))
			return
		}
		fmt.Printf("[STATE] classification=%s inversion=%s history=%d samples=%d inverted=%d\n",
			s.Classification, onOff(s.Enabled), s.HistoryLen, s.SamplesTotal, s.InvertedTotal)

	case "classification_changed":
		var c classificationChanged
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return
		}
		fmt.Printf("[CLASS] %s\n", c.Classification)

	case "sample_stats":
		if !showStats {
			return
		}
		var s sampleStats
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return
		}
		fmt.Printf("[STATS] samples=%d inverted=%d\n", s.SamplesTotal, s.InvertedTotal)

	default:
		prettyJSON, _ := json.MarshalIndent(env, "", "  ")
		fmt.Printf("[MESSAGE]\n%s\n\n", string(prettyJSON))
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
