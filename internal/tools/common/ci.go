// Package common holds helpers shared by the operational tool commands.
package common

import (
	"encoding/json"
	"fmt"
	"os"
)

type ciResult struct {
	Check   string   `json:"check"`
	Passed  bool     `json:"passed"`
	Details []string `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// PrintCIResult emits one machine-readable JSON line per check, for
// pipelines that parse tool output instead of scraping logs.
func PrintCIResult(passed bool, check string, details []string, err error) {
	res := ciResult{Check: check, Passed: passed, Details: details}
	if err != nil {
		res.Error = err.Error()
	}
	raw, marshalErr := json.Marshal(res)
	if marshalErr != nil {
		fmt.Fprintf(os.Stderr, "marshal ci result: %v\n", marshalErr)
		return
	}
	fmt.Println(string(raw))
}
