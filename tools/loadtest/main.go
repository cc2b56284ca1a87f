package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devaloi/parley/internal/domain"
	"github.com/devaloi/parley/internal/reply"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	clients := flag.Int("clients", 10, "Number of concurrent clients")
	messages := flag.Int("messages", 10, "Messages per client")
	wait := flag.Duration("wait", 5*time.Second, "How long to wait for outstanding replies")
	flag.Parse()

	log.Printf("Load test: %d clients, %d messages each", *clients, *messages)

	var (
		connected int64
		sent      int64
		replies   int64
		errors    int64
		latencies []time.Duration
		latencyMu sync.Mutex
		wg        sync.WaitGroup
	)

	start := time.Now()

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			user := fmt.Sprintf("user_%d", id)
			conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?user=%s", *url, user), nil)
			if err != nil {
				atomic.AddInt64(&errors, 1)
				log.Printf("client %d: dial error: %v", id, err)
				return
			}
			defer conn.Close()
			atomic.AddInt64(&connected, 1)

			title := "loadtest " + user
			roomCh := make(chan string, 1)
			var (
				pendingMu sync.Mutex
				pending   = map[string]time.Time{}
			)

			done := make(chan struct{})
			go func() {
				defer close(done)
				for {
					_, data, err := conn.ReadMessage()
					if err != nil {
						return
					}
					var head domain.Frame
					if json.Unmarshal(data, &head) != nil {
						continue
					}
					switch head.Type {
					case domain.FrameRoomCreated:
						var f domain.RoomFrame
						if json.Unmarshal(data, &f) == nil && f.Chatroom.Title == title {
							roomCh <- f.Chatroom.ID
						}
					case domain.FrameMessage:
						var f domain.MessageFrame
						if json.Unmarshal(data, &f) != nil || f.Message.Sender == user {
							continue
						}
						pendingMu.Lock()
						for text, at := range pending {
							if f.Message.Text == reply.Text(text) {
								delete(pending, text)
								latencyMu.Lock()
								latencies = append(latencies, time.Since(at))
								latencyMu.Unlock()
								atomic.AddInt64(&replies, 1)
								break
							}
						}
						pendingMu.Unlock()
					case domain.FrameError:
						atomic.AddInt64(&errors, 1)
					}
				}
			}()

			writeJSON(conn, domain.Frame{Type: domain.FrameCreate, Title: title})
			var roomID string
			select {
			case roomID = <-roomCh:
			case <-time.After(5 * time.Second):
				atomic.AddInt64(&errors, 1)
				log.Printf("client %d: room not created", id)
				return
			}
			writeJSON(conn, domain.Frame{Type: domain.FrameOpen, Room: roomID})

			for j := 0; j < *messages; j++ {
				text := fmt.Sprintf("msg %d from %s", j, user)
				pendingMu.Lock()
				pending[text] = time.Now()
				pendingMu.Unlock()
				if err := writeJSON(conn, domain.Frame{Type: domain.FrameSend, Text: text}); err != nil {
					atomic.AddInt64(&errors, 1)
					return
				}
				atomic.AddInt64(&sent, 1)
				time.Sleep(10 * time.Millisecond)
			}

			deadline := time.Now().Add(*wait)
			for time.Now().Before(deadline) {
				pendingMu.Lock()
				n := len(pending)
				pendingMu.Unlock()
				if n == 0 {
					break
				}
				time.Sleep(50 * time.Millisecond)
			}

			writeJSON(conn, domain.Frame{Type: domain.FrameDelete, Room: roomID})
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			<-done
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Println("\n=== Load Test Results ===")
	fmt.Printf("Duration:    %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Clients:     %d connected\n", connected)
	fmt.Printf("Sent:        %d messages\n", sent)
	fmt.Printf("Replies:     %d received\n", replies)
	fmt.Printf("Errors:      %d\n", errors)
	if len(latencies) > 0 {
		fmt.Println(strings.Repeat("-", 25))
		fmt.Printf("Reply p50:   %s\n", percentile(latencies, 50))
		fmt.Printf("Reply p95:   %s\n", percentile(latencies, 95))
		fmt.Printf("Reply p99:   %s\n", percentile(latencies, 99))
	}
	fmt.Printf("Throughput:  %.0f msgs/sec\n", float64(sent)/elapsed.Seconds())
}

func writeJSON(conn *websocket.Conn, f domain.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
