package room

import (
	"fmt"
	"strings"
	"time"
)

// BlindLevel is one step of a blind schedule.
type BlindLevel struct {
	Level      int `json:"level"`
	SmallBlind int `json:"smallBlind"`
	BigBlind   int `json:"bigBlind"`
	Ante       int `json:"ante"`
}

// Structure names a tournament blind schedule.
type Structure string

const (
	Standard Structure = "standard"
	Fast     Structure = "fast"
	Turbo    Structure = "turbo"
)

// DefaultLevelDuration is how long each tournament level lasts.
const DefaultLevelDuration = 10 * time.Minute

// CashBlinds are the fixed blinds for cash rooms.
var CashBlinds = BlindLevel{Level: 1, SmallBlind: 10, BigBlind: 20}

var structures = map[Structure][]BlindLevel{
	Standard: {
		{1, 25, 50, 0},
		{2, 50, 100, 0},
		{3, 75, 150, 0},
		{4, 100, 200, 0},
		{5, 150, 300, 25},
		{6, 200, 400, 50},
		{7, 300, 600, 75},
		{8, 400, 800, 100},
		{9, 600, 1200, 150},
		{10, 800, 1600, 200},
		{11, 1000, 2000, 300},
		{12, 1500, 3000, 400},
	},
	Fast: {
		{1, 25, 50, 0},
		{2, 50, 100, 0},
		{3, 100, 200, 0},
		{4, 150, 300, 25},
		{5, 200, 400, 50},
		{6, 400, 800, 100},
		{7, 600, 1200, 150},
		{8, 800, 1600, 200},
		{9, 1200, 2400, 300},
		{10, 1500, 3000, 400},
	},
	Turbo: {
		{1, 50, 100, 0},
		{2, 100, 200, 0},
		{3, 200, 400, 50},
		{4, 300, 600, 75},
		{5, 500, 1000, 100},
		{6, 800, 1600, 200},
		{7, 1200, 2400, 300},
		{8, 1500, 3000, 400},
	},
}

// Levels returns a copy of the named schedule.
func Levels(s Structure) ([]BlindLevel, error) {
	levels, ok := structures[s]
	if !ok {
		return nil, fmt.Errorf("unknown blind structure %q", s)
	}
	return append([]BlindLevel(nil), levels...), nil
}

// ParseStructure validates a structure name; empty means Standard.
func ParseStructure(s string) (Structure, error) {
	if s == "" {
		return Standard, nil
	}
	st := Structure(strings.ToLower(s))
	if _, ok := structures[st]; !ok {
		return "", fmt.Errorf("unknown blind structure %q", s)
	}
	return st, nil
}
