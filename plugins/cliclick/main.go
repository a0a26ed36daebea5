// Package main provides a click plugin for macOS.
// It clicks each matched pair in order using the cliclick tool.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/exec"
	"time"
)

// Point is a logical screen position. Scaled displays produce fractional
// values; they are rounded to the nearest pixel when clicked.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// pixel returns p rounded to whole screen pixels.
func (p Point) pixel() (int, int) {
	return int(math.Round(p.X)), int(math.Round(p.Y))
}

// Pair is two points clicked one after the other.
type Pair struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

// Delays are the pauses between clicks and between pairs, in milliseconds.
type Delays struct {
	ClickMs int `json:"click_ms"`
	PairMs  int `json:"pair_ms"`
}

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Pairs  []Pair          `json:"pairs"`
	Delays Delays          `json:"delays"`
	DryRun bool            `json:"dry_run"`
	Config json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// runCommand and sleep are replaced in tests.
var (
	runCommand = func(name string, args ...string) error {
		output, err := exec.Command(name, args...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("%w: %s", err, string(output))
		}
		return nil
	}
	sleep = time.Sleep
)

func main() {
	resp := handle(os.Stdin)
	json.NewEncoder(os.Stdout).Encode(resp)
}

// handle decodes one request and clicks its pairs.
func handle(r io.Reader) Response {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}
	if req.Action != "click_pairs" {
		return Response{Error: fmt.Sprintf("unknown action: %s", req.Action)}
	}

	if req.DryRun {
		planned := plan(req)
		data, _ := json.Marshal(map[string]any{"clicked": 0, "dry_run": true, "planned": planned})
		return Response{Success: true, Data: data}
	}

	if _, err := exec.LookPath("cliclick"); err != nil {
		return Response{Error: "cliclick not installed (brew install cliclick)"}
	}

	clicked, err := clickPairs(req)
	data, _ := json.Marshal(map[string]any{"clicked": clicked, "dry_run": false})
	if err != nil {
		return Response{Error: err.Error(), Data: data}
	}
	return Response{Success: true, Data: data}
}

// plan logs the cliclick commands a live run would issue and returns them.
// No mouse events are sent.
func plan(req Request) []string {
	planned := make([]string, 0, 2*len(req.Pairs))
	for i, p := range req.Pairs {
		a, b := pointArg(p.A), pointArg(p.B)
		log.Printf("dry run: pair %d: cliclick %s then %s", i+1, a, b)
		planned = append(planned, a, b)
	}
	return planned
}

// clickPairs clicks A then B for each pair.
func clickPairs(req Request) (int, error) {
	clicked := 0
	for i, p := range req.Pairs {
		if err := runCommand("cliclick", pointArg(p.A)); err != nil {
			return clicked, fmt.Errorf("pair %d first click: %w", i+1, err)
		}
		sleep(time.Duration(req.Delays.ClickMs) * time.Millisecond)
		if err := runCommand("cliclick", pointArg(p.B)); err != nil {
			return clicked, fmt.Errorf("pair %d second click: %w", i+1, err)
		}
		clicked++
		sleep(time.Duration(req.Delays.PairMs) * time.Millisecond)
	}
	return clicked, nil
}

// pointArg formats a cliclick command such as "c:120,340".
func pointArg(p Point) string {
	x, y := p.pixel()
	return fmt.Sprintf("c:%d,%d", x, y)
}
