// cmd/replaycheck/main.go
// replaycheck re-runs recorded replay bundles and reports whether each one
// reproduces its recorded outcome.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/opd-ai/go-lander/pkg/landing"
	"github.com/opd-ai/go-lander/pkg/logging"
	"github.com/opd-ai/go-lander/pkg/replay"
)

type report struct {
	Dir   string         `json:"dir"`
	Error string         `json:"error,omitempty"`
	Check *replay.Result `json:"result,omitempty"`
}

func main() {
	asJSON := flag.Bool("json", false, "Print results as JSON lines")
	flag.Parse()

	logger := logging.NewLogger()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: replaycheck [-json] <bundle-dir>...")
		os.Exit(2)
	}

	failed := run(flag.Args(), os.Stdout, *asJSON)
	if failed > 0 {
		logger.Warn(context.Background(), "Replay verification failed", "bundles", flag.NArg(), "failed", failed)
		os.Exit(1)
	}
}

// run verifies each bundle and writes one line per bundle. It returns the
// number of bundles that could not be read or did not match.
func run(dirs []string, out io.Writer, asJSON bool) int {
	failed := 0
	enc := json.NewEncoder(out)
	for _, dir := range dirs {
		rep := report{Dir: dir}
		res, err := replay.Verify(dir)
		if err != nil {
			rep.Error = err.Error()
			failed++
		} else {
			rep.Check = &res
			if !res.Match {
				failed++
			}
		}

		if asJSON {
			enc.Encode(rep)
			continue
		}
		fmt.Fprintln(out, describe(rep))
	}
	return failed
}

func describe(rep report) string {
	if rep.Error != "" {
		return fmt.Sprintf("ERROR  %s: %s", rep.Dir, rep.Error)
	}
	res := rep.Check
	status := "MATCH"
	if !res.Match {
		status = "MISMATCH"
	}
	return fmt.Sprintf("%-8s %s: %d ticks, recorded %s, replayed %s",
		status, rep.Dir, res.Ticks, summary(res.Recorded), summary(res.Replayed))
}

func summary(o *landing.Outcome) string {
	switch {
	case o == nil:
		return "nothing"
	case o.Safe():
		return fmt.Sprintf("safe on %s (%d)", o.TargetKey, o.Score)
	default:
		return fmt.Sprintf("crash (%s)", o.Cause)
	}
}
