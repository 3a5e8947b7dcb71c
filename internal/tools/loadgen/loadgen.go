// Package loadgen drives synthetic traffic against a running server so
// operators can exercise rate limits and dashboards before real
// launchers show up.
package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	Profile     string // "auth", "session", "meta" or "mixed"
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
}

type Result struct {
	TotalRequests int64
	Failures      int64
	StatusClasses map[string]int64
}

type request struct {
	method string
	path   string
	body   any
}

// Run fires paced requests until the duration elapses. Failures count
// transport errors and 5xx answers; expected rejections like a 403 on
// bogus credentials are healthy traffic.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	profile := normalizeProfile(cfg.Profile)

	// rng is drawn from the pacing goroutine only.
	rng := rand.New(rand.NewSource(cfg.Seed))

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	work := make(chan request)
	var total, failures atomic.Int64
	classes := make(map[string]int64)
	var classMu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range work {
				total.Add(1)
				status, err := fire(ctx, client, cfg.BaseURL, req)
				if err != nil || status >= 500 {
					failures.Add(1)
				}
				class := classifyStatusClass(status)
				classMu.Lock()
				classes[class]++
				classMu.Unlock()
			}
		}()
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()

pace:
	for {
		select {
		case <-ctx.Done():
			break pace
		case <-ticker.C:
			req := pick(rng, profile)
			select {
			case work <- req:
			case <-ctx.Done():
				break pace
			}
		}
	}
	close(work)
	wg.Wait()

	return &Result{
		TotalRequests: total.Load(),
		Failures:      failures.Load(),
		StatusClasses: classes,
	}, nil
}

func pick(rng *rand.Rand, profile string) request {
	pools := map[string][]request{
		"auth": {
			{method: http.MethodPost, path: "/authserver/authenticate", body: map[string]string{
				"username": fmt.Sprintf("ghost-%d@example.com", rng.Intn(1000)),
				"password": "definitely-wrong",
			}},
			{method: http.MethodPost, path: "/authserver/validate", body: map[string]string{
				"accessToken": fmt.Sprintf("%032x", rng.Uint64()),
			}},
		},
		"session": {
			{method: http.MethodGet, path: fmt.Sprintf("/sessionserver/session/minecraft/hasJoined?username=Ghost%d&serverId=load-%d", rng.Intn(1000), rng.Intn(1000))},
			{method: http.MethodGet, path: fmt.Sprintf("/sessionserver/session/minecraft/profile/%032x", rng.Uint64())},
		},
		"meta": {
			{method: http.MethodGet, path: "/"},
			{method: http.MethodGet, path: "/health/live"},
		},
	}
	pool, ok := pools[profile]
	if !ok {
		pool = append(append(pools["auth"], pools["session"]...), pools["meta"]...)
	}
	return pool[rng.Intn(len(pool))]
}

func fire(ctx context.Context, client *http.Client, baseURL string, req request) (int, error) {
	var body *bytes.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(payload)
	} else {
		body = bytes.NewReader(nil)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, baseURL+req.path, body)
	if err != nil {
		return 0, err
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

func normalizeProfile(profile string) string {
	v := strings.TrimSpace(strings.ToLower(profile))
	if v == "" {
		return "mixed"
	}
	return v
}
