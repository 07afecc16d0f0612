package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Source is anything that hands out subscriptions.
type Source interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

const heartbeatInterval = 15 * time.Second

// ServeSSE streams events from src as server-sent events until the client
// goes away.
func ServeSSE(src Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		sub, err := src.Subscribe(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		defer sub.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case ev, ok := <-sub.Events:
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "id: %s\nevent: change\ndata: %s\n\n", ev.ID, data)
				flusher.Flush()
			}
		}
	}
}

// Remote subscribes to an SSE endpoint served by ServeSSE.
type Remote struct {
	URL    string
	Client *http.Client
}

// Subscribe implements Source. The HTTP client must not carry a request
// timeout, since the stream stays open indefinitely.
func (r *Remote) Subscribe(ctx context.Context) (Subscription, error) {
	return Dial(ctx, r.Client, r.URL)
}

// Dial opens an SSE stream. The returned channel is closed when the stream
// ends, whatever the reason.
func Dial(ctx context.Context, client *http.Client, url string) (Subscription, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return Subscription{}, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return Subscription{}, fmt.Errorf("connect feed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		cancel()
		return Subscription{}, fmt.Errorf("feed error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	events := make(chan Event, defaultBufferSize)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		readStream(ctx, resp.Body, events)
	}()

	return NewSubscription(events, cancel), nil
}

func readStream(ctx context.Context, body io.Reader, out chan<- Event) {
	scanner := bufio.NewScanner(body)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var ev Event
			err := json.Unmarshal([]byte(data.String()), &ev)
			data.Reset()
			if err != nil {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}
