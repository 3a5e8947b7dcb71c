// Package smoke verifies a running deployment answers its wire
// contract before traffic is pointed at it.
package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/craftauth/yggdrasil/internal/tools/common"
	"github.com/craftauth/yggdrasil/internal/tools/loadgen"
)

type options struct {
	baseURL  string
	duration time.Duration
	rps      int
	ci       bool
}

func NewCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "smoke", Short: "Verify a running server answers its wire contract"}
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "server base URL")
	cmd.PersistentFlags().DurationVar(&opts.duration, "duration", 6*time.Second, "traffic generation window")
	cmd.PersistentFlags().IntVar(&opts.rps, "rps", 20, "requests per second during traffic generation")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newRunCommand(opts))
	return cmd
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Probe meta, health and auth error contract, then generate mixed traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Minute)
			defer cancel()

			details, err := run(ctx, opts)
			if opts.ci {
				common.PrintCIResult(err == nil, "smoke run", details, err)
				if err != nil {
					os.Exit(4)
				}
				return nil
			}
			for _, d := range details {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return err
		},
	}
}

func run(ctx context.Context, opts *options) ([]string, error) {
	var details []string

	if err := checkMeta(ctx, opts.baseURL); err != nil {
		return details, err
	}
	details = append(details, "meta document: ok")

	if err := checkReady(ctx, opts.baseURL); err != nil {
		return details, err
	}
	details = append(details, "health ready: ok")

	if err := checkAuthErrorContract(ctx, opts.baseURL); err != nil {
		return details, err
	}
	details = append(details, "auth error contract: ok")

	res, err := loadgen.Run(ctx, loadgen.Config{
		BaseURL:  opts.baseURL,
		Profile:  "mixed",
		Duration: opts.duration,
		RPS:      opts.rps,
		Seed:     42,
	})
	if err != nil {
		return details, err
	}
	details = append(details, fmt.Sprintf("traffic generated total=%d failures=%d", res.TotalRequests, res.Failures))
	if res.Failures > 0 {
		return details, fmt.Errorf("%d of %d requests failed", res.Failures, res.TotalRequests)
	}
	return details, nil
}

func checkMeta(ctx context.Context, baseURL string) error {
	body, status, err := get(ctx, baseURL+"/")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("meta document answered %d", status)
	}
	var doc struct {
		Meta map[string]string `json:"meta"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("meta document is not JSON: %w", err)
	}
	if doc.Meta["implementationName"] == "" {
		return fmt.Errorf("meta document missing implementation name")
	}
	return nil
}

func checkReady(ctx context.Context, baseURL string) error {
	_, status, err := get(ctx, baseURL+"/health/ready")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("readiness answered %d", status)
	}
	return nil
}

// checkAuthErrorContract asserts bogus credentials produce the exact
// error body launchers parse.
func checkAuthErrorContract(ctx context.Context, baseURL string) error {
	payload, _ := json.Marshal(map[string]string{
		"username": "smoke-probe@example.com",
		"password": "wrong-on-purpose",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/authserver/authenticate", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusForbidden {
		return fmt.Errorf("expected 403 for bad credentials, got %d", resp.StatusCode)
	}
	var body struct {
		Error        string `json:"error"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("error body is not JSON: %w", err)
	}
	if body.Error != "ForbiddenOperationException" || body.ErrorMessage == "" {
		return fmt.Errorf("unexpected error body: %+v", body)
	}
	return nil
}

func get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return raw, resp.StatusCode, nil
}
