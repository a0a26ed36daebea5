// Package main provides a click plugin for Linux desktops running X11.
// It clicks each matched pair in order using xdotool.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Point is a logical screen position, possibly fractional on scaled
// displays.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
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

// Config is the optional plugin configuration.
type Config struct {
	// Button is the xdotool mouse button, 1 when unset.
	Button int `json:"button"`
}

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

func handle(r io.Reader) Response {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}
	if req.Action != "click_pairs" {
		return Response{Error: fmt.Sprintf("unknown action: %s", req.Action)}
	}

	cfg := Config{Button: 1}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return Response{Error: fmt.Sprintf("failed to parse config: %v", err)}
		}
		if cfg.Button == 0 {
			cfg.Button = 1
		}
	}

	if req.DryRun {
		planned := make([]string, 0, 2*len(req.Pairs))
		for i, p := range req.Pairs {
			a := strings.Join(clickArgs(p.A, cfg.Button), " ")
			b := strings.Join(clickArgs(p.B, cfg.Button), " ")
			log.Printf("dry run: pair %d: xdotool %s; xdotool %s", i+1, a, b)
			planned = append(planned, a, b)
		}
		data, _ := json.Marshal(map[string]any{"clicked": 0, "dry_run": true, "planned": planned})
		return Response{Success: true, Data: data}
	}

	if _, err := exec.LookPath("xdotool"); err != nil {
		return Response{Error: "xdotool not installed"}
	}

	clicked, err := clickPairs(req, cfg)
	data, _ := json.Marshal(map[string]any{"clicked": clicked, "dry_run": false})
	if err != nil {
		return Response{Error: err.Error(), Data: data}
	}
	return Response{Success: true, Data: data}
}

func clickPairs(req Request, cfg Config) (int, error) {
	clicked := 0
	for i, p := range req.Pairs {
		if err := runCommand("xdotool", clickArgs(p.A, cfg.Button)...); err != nil {
			return clicked, fmt.Errorf("pair %d first click: %w", i+1, err)
		}
		sleep(time.Duration(req.Delays.ClickMs) * time.Millisecond)
		if err := runCommand("xdotool", clickArgs(p.B, cfg.Button)...); err != nil {
			return clicked, fmt.Errorf("pair %d second click: %w", i+1, err)
		}
		clicked++
		sleep(time.Duration(req.Delays.PairMs) * time.Millisecond)
	}
	return clicked, nil
}

// clickArgs moves the pointer to p, rounded to whole pixels, and clicks
// button.
func clickArgs(p Point, button int) []string {
	x, y := int(math.Round(p.X)), int(math.Round(p.Y))
	return []string{"mousemove", "--sync", strconv.Itoa(x), strconv.Itoa(y), "click", strconv.Itoa(button)}
}
