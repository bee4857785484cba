// Command sse_load opens many concurrent subscriptions to the notification
// stream and reports connection and event counts.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type options struct {
	url         string
	connections int
	duration    time.Duration
	rampUp      time.Duration
}

type stats struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64

	mu     sync.Mutex
	events map[string]int64
}

func newStats() *stats {
	return &stats{events: make(map[string]int64)}
}

func (s *stats) event(name string) {
	s.mu.Lock()
	s.events[name]++
	s.mu.Unlock()
}

func (s *stats) snapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.events))
	for k, v := range s.events {
		out[k] = v
	}
	return out
}

func (s *stats) fields() []zap.Field {
	return []zap.Field{
		zap.Int64("connected", s.connected.Load()),
		zap.Int64("connect_errs", s.connectErrs.Load()),
		zap.Int64("stream_errs", s.streamErrs.Load()),
		zap.Any("events", s.snapshot()),
	}
}

func main() {
	var o options
	flag.StringVar(&o.url, "url", "http://127.0.0.1:8080/api/notifications/stream", "SSE endpoint URL")
	flag.IntVar(&o.connections, "conns", 1000, "number of concurrent connections to open")
	flag.DurationVar(&o.duration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&o.rampUp, "ramp", 0, "spread connection starts across this window")
	flag.Parse()

	l, _ := zap.NewProduction()
	defer func() { _ = l.Sync() }()

	if o.connections <= 0 {
		l.Fatal("invalid conns", zap.Int("conns", o.connections))
	}
	if o.rampUp == 0 && o.connections > 100 {
		// 1 second per 500 connections
		o.rampUp = max(time.Duration(o.connections/500)*time.Second, time.Second)
		l.Info("using default ramp-up", zap.Duration("ramp", o.rampUp))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if o.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.duration)
		defer cancel()
	}

	l.Info("starting sse load",
		zap.String("url", o.url),
		zap.Int("conns", o.connections),
		zap.Duration("duration", o.duration),
		zap.Duration("ramp", o.rampUp))

	started := time.Now()
	s := newStats()
	run(ctx, l, o, newClient(o.connections), s)

	fmt.Fprintf(os.Stdout, "done: connected=%d connect_errs=%d stream_errs=%d events=%v elapsed=%s\n",
		s.connected.Load(), s.connectErrs.Load(), s.streamErrs.Load(), s.snapshot(),
		time.Since(started).Truncate(time.Millisecond))
}

func newClient(connections int) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}
}

// run holds o.connections streams open until ctx is done. Events are counted
// in s by their SSE event name.
func run(ctx context.Context, l *zap.Logger, o options, client *http.Client, s *stats) {
	var interval time.Duration
	if o.rampUp > 0 && o.connections > 0 {
		interval = o.rampUp / time.Duration(o.connections)
	}

	finished := make(chan struct{})
	defer close(finished)

	report := time.NewTicker(5 * time.Second)
	defer report.Stop()
	go func() {
		for {
			select {
			case <-finished:
				return
			case <-ctx.Done():
				return
			case <-report.C:
				l.Info("status", s.fields()...)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < o.connections && ctx.Err() == nil; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, o.url, s)
		}()
	}
	wg.Wait()
}

func subscribe(ctx context.Context, client *http.Client, url string, s *stats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		s.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		s.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.connectErrs.Add(1)
		return
	}
	s.connected.Add(1)

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				s.streamErrs.Add(1)
			}
			return
		}
		// heartbeats start with ':' and are not counted
		if name, ok := strings.CutPrefix(strings.TrimRight(line, "\r\n"), "event: "); ok {
			s.event(name)
		}
	}
}
