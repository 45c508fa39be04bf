// Command verify-layout regenerates a layout from revealed seeds and traces
// the beam through it, so a finished session can be checked offline.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/MJE43/lightgrid/internal/engine"
	"github.com/MJE43/lightgrid/internal/grid"
	"github.com/MJE43/lightgrid/internal/layout"
	"github.com/MJE43/lightgrid/internal/tracer"
)

type report struct {
	ServerSeedHash string          `json:"server_seed_hash"`
	Source         string          `json:"source"`
	Difficulty     string          `json:"difficulty"`
	Level          string          `json:"level,omitempty"`
	Nonce          uint64          `json:"nonce"`
	Board          string          `json:"board"`
	Trace          tracer.Result   `json:"trace"`
	Solution       []grid.Position `json:"solution,omitempty"`
}

func main() {
	server := flag.String("server", "", "revealed server seed")
	client := flag.String("client", "", "client seed")
	nonce := flag.Uint64("nonce", 0, "nonce")
	difficulty := flag.String("difficulty", layout.DefaultDifficulty, "difficulty name")
	source := flag.String("source", "random", "layout source")
	level := flag.String("level", "", "level name for the levels source")
	asJSON := flag.Bool("json", false, "print JSON")
	flag.Parse()

	if *server == "" && *source == "random" {
		log.Fatal("-server is required for the random source")
	}

	src, ok := layout.Get(*source)
	if !ok {
		log.Fatalf("unknown source %q", *source)
	}
	seeds := engine.Seeds{Server: *server, Client: *client}
	lay, err := src.Generate(seeds, *nonce, layout.Params{Difficulty: *difficulty, Level: *level})
	if err != nil {
		log.Fatalf("generate: %v", err)
	}
	res, err := tracer.TraceGrid(lay.Grid)
	if err != nil {
		log.Fatalf("trace: %v", err)
	}

	r := report{
		ServerSeedHash: engine.HashSeed(*server),
		Source:         *source,
		Difficulty:     lay.Difficulty.Name,
		Level:          lay.Level,
		Nonce:          *nonce,
		Board:          layout.Render(lay.Grid, res.Path),
		Trace:          res,
		Solution:       lay.Solution,
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			log.Fatal(err)
		}
		return
	}

	fmt.Printf("Server seed hash: %s\n", r.ServerSeedHash)
	fmt.Printf("Source: %s  Difficulty: %s", r.Source, r.Difficulty)
	if r.Level != "" {
		fmt.Printf("  Level: %s", r.Level)
	}
	fmt.Printf("  Nonce: %d\n\n", r.Nonce)
	fmt.Println(r.Board)
	fmt.Printf("\nOutcome: %s after %d steps\n", res.Outcome, res.Steps)

	cells := make([]string, len(res.Path))
	for i, p := range res.Path {
		cells[i] = p.String()
	}
	fmt.Printf("Path: %s\n", strings.Join(cells, " "))
	if len(lay.Solution) > 0 {
		fmt.Printf("Solution: %d rotations\n", len(lay.Solution))
	}
}
