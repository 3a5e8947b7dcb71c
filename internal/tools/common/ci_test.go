package common

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

func TestPrintCIResultShape(t *testing.T) {
	out := captureStdout(t, func() {
		PrintCIResult(false, "smoke run", []string{"traffic generated"}, errors.New("boom"))
	})

	var res struct {
		Check   string   `json:"check"`
		Passed  bool     `json:"passed"`
		Details []string `json:"details"`
		Error   string   `json:"error"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &res); err != nil {
		t.Fatalf("output is not one JSON line: %v (%q)", err, out)
	}
	if res.Check != "smoke run" || res.Passed || res.Error != "boom" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Details) != 1 || res.Details[0] != "traffic generated" {
		t.Fatalf("unexpected details %+v", res.Details)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = old
	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read captured stdout: %v", err)
	}
	return string(raw)
}
