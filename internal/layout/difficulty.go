package layout

import (
	"fmt"
	"strings"
	"time"
)

// Difficulty sets the board size, how many turns the solution takes, how many
// decoy mirrors are scattered around, and the clock.
type Difficulty struct {
	Name       string        `json:"name"`
	Size       int           `json:"size"`
	Turns      int           `json:"turns"`
	Decoys     int           `json:"decoys"`
	TimeLimit  time.Duration `json:"time_limit"`
	Multiplier int64         `json:"multiplier"`
}

// DefaultDifficulty is used when a request names none.
const DefaultDifficulty = "medium"

// Difficulties is ordered from easiest to hardest.
var Difficulties = []Difficulty{
	{Name: "easy", Size: 6, Turns: 2, Decoys: 2, TimeLimit: 120 * time.Second, Multiplier: 1},
	{Name: "medium", Size: 8, Turns: 3, Decoys: 4, TimeLimit: 90 * time.Second, Multiplier: 2},
	{Name: "hard", Size: 10, Turns: 4, Decoys: 8, TimeLimit: 60 * time.Second, Multiplier: 3},
}

// DifficultyByName looks a difficulty up case-insensitively. An empty name
// selects DefaultDifficulty.
func DifficultyByName(name string) (Difficulty, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultDifficulty
	}
	for _, d := range Difficulties {
		if d.Name == name {
			return d, nil
		}
	}
	return Difficulty{}, fmt.Errorf("unknown difficulty %q", name)
}

// DifficultyNames returns the names in order.
func DifficultyNames() []string {
	names := make([]string, len(Difficulties))
	for i, d := range Difficulties {
		names[i] = d.Name
	}
	return names
}
