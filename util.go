package main

import (
	"math/rand"
	"strconv"
)

// GenerateRoomName returns a random numeric room name, matching the
// format clients already parse.
func GenerateRoomName() string {
	return strconv.Itoa(rand.Intn(1_000_000_000))
}

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
