// Command watch connects to a server's observer stream and prints one line
// per frame.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"dwellers.ai/internal/logging"
	"dwellers.ai/internal/observerproto"
)

func main() {
	var (
		addr   = flag.String("addr", "http://127.0.0.1:8080", "server base url")
		focus  = flag.String("focus", "", "only stream this agent")
		frames = flag.Int("frames", 0, "exit after this many frames (0 = forever)")
	)
	flag.Parse()
	logger := logging.Component(logging.New("info", true, os.Stderr), "watch")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	boot, err := fetchBootstrap(ctx, *addr)
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap")
	}
	logger.Info().
		Str("world", boot.WorldID).
		Uint64("tick", boot.Tick).
		Int64("seed", boot.WorldParams.Seed).
		Int("chunk_size", boot.WorldParams.ChunkSize).
		Msg("connected")

	wsURL, err := observerURL(*addr)
	if err != nil {
		logger.Fatal().Err(err).Msg("observer url")
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		logger.Fatal().Err(err).Str("url", wsURL).Msg("dial")
	}
	defer conn.Close()

	if err := watch(ctx, conn, *focus, *frames, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("stream ended")
	}
}

func fetchBootstrap(ctx context.Context, base string) (observerproto.BootstrapResponse, error) {
	var out observerproto.BootstrapResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(base, "/")+"/v1/observer/bootstrap", nil)
	if err != nil {
		return out, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("bootstrap: %s", resp.Status)
	}
	return out, json.NewDecoder(resp.Body).Decode(&out)
}

func observerURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/observer/ws"
	return u.String(), nil
}

// watch subscribes and prints frames until ctx ends, the server closes the
// stream or n frames were printed (n <= 0 means no limit). The subscription
// is re-sent periodically to keep the server's read deadline alive.
func watch(ctx context.Context, conn *websocket.Conn, focus string, n int, out io.Writer) error {
	sub := observerproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: observerproto.Version,
		FocusAgentID:    focus,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("send SUBSCRIBE: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(30 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
				return
			case <-t.C:
				_ = conn.WriteJSON(sub)
			}
		}
	}()

	for seen := 0; n <= 0 || seen < n; {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		var f observerproto.FrameMsg
		if err := json.Unmarshal(msg, &f); err != nil || f.Type != "FRAME" {
			continue
		}
		fmt.Fprintln(out, formatFrame(f))
		seen++
	}
	return nil
}

func formatFrame(f observerproto.FrameMsg) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tick=%d chunks=%d tasks=%d", f.Tick, f.LoadedChunks, len(f.Tasks))
	agents := append([]observerproto.AgentState(nil), f.Agents...)
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	for _, a := range agents {
		fmt.Fprintf(&b, " %s@(%d,%d)", a.ID, a.Cell[0], a.Cell[1])
		if a.QueueLen > 0 {
			fmt.Fprintf(&b, "+%d", a.QueueLen)
		}
		if a.Carrying != "" {
			fmt.Fprintf(&b, "[%s]", a.Carrying)
		}
	}
	return b.String()
}
