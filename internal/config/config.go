// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for room and server settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds the listener settings.
type ServerConfig struct {
	Port int
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{Port: 2567}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	return cfg
}

// =============================================================================
// ROOM / SIMULATION CONFIGURATION
// =============================================================================

// RoomConfig carries the tuning constants the driver (C7), room controller
// (C6), and rewind history (C4) read. Gameplay balance constants (damage,
// speeds, cooldowns) live in internal/sim.Config instead — this struct is
// strictly the networking/scheduling side of the room.
type RoomConfig struct {
	TickHz int // simulation rate; tickMs = 1000/TickHz

	MaxPlayers int

	SnapshotIntervalTicks  int // every 2 ticks => 30Hz broadcast at 60Hz sim
	HUDIntervalTicks       int
	TelemetryIntervalTicks int

	MaxCatchupTicks int // spiral-of-death guard

	InputQueueDepth int // max queued commands per slot before drop-oldest
	InputTrimDepth  int // queue depth that triggers trim-to-newest
	InputTrimKeep   int // commands kept after a trim
	HeldInputTicks  int // ticks a vanished client's last input is held

	TokenBucketCapacity     float64
	TokenBucketRefillPerSec float64

	ReconnectGraceSeconds float64

	MaxRewindMs float64 // feeds rewind.History capacity
	RewindSlack int     // extra frames of slack added to the computed capacity

	LatencyWeight        float64 // time-based shot-tick estimate weights
	ViewWeight           float64
	ViewInterpDelayMaxMs float64

	WorldWidth, WorldHeight float32
}

// DefaultRoomConfig returns the constants for the arena room type.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		TickHz:     60,
		MaxPlayers: 16,

		SnapshotIntervalTicks:  2,
		HUDIntervalTicks:       6,
		TelemetryIntervalTicks: 300,

		MaxCatchupTicks: 4,

		InputQueueDepth: 30,
		InputTrimDepth:  6,
		InputTrimKeep:   3,
		HeldInputTicks:  3,

		TokenBucketCapacity:     60,
		TokenBucketRefillPerSec: 120,

		ReconnectGraceSeconds: 30,

		MaxRewindMs: 400,
		RewindSlack: 6,

		LatencyWeight:        0.45,
		ViewWeight:           0.35,
		ViewInterpDelayMaxMs: 200,

		WorldWidth:  2000,
		WorldHeight: 2000,
	}
}

// RoomConfigFromEnv overrides select fields from the environment. Only
// MAX_PLAYERS is exposed; the rest are fixed simulation constants and
// intentionally not environment-tunable.
func RoomConfigFromEnv() RoomConfig {
	cfg := DefaultRoomConfig()
	if mp := getEnvInt("MAX_PLAYERS", 0); mp > 0 {
		cfg.MaxPlayers = mp
	}
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server ServerConfig
	Room   RoomConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server: ServerFromEnv(),
		Room:   RoomConfigFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
