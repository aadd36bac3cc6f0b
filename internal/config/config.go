// Package config loads the per-deployment knobs that the teacher hardcodes
// into NewGameServer. Grounded on Seednode-partybox's cmd-level flag/env
// wiring: github.com/spf13/viper resolves precedence (flag > env > file >
// default) and github.com/spf13/cobra owns the command/flag surface that
// calls into this package from cmd/server.
package config

import (
	"time"

	"github.com/spf13/viper"

	"sequence/internal/hub"
	"sequence/internal/registry"
)

// Config holds every runtime knob the engine and API layer need.
type Config struct {
	ListenAddr          string
	SessionTTL          time.Duration
	DisconnectGrace     time.Duration
	HeartbeatInterval   time.Duration
	InactiveGameTimeout time.Duration
	GCInterval          time.Duration
	AIDelayMin          time.Duration
	AIDelayMax          time.Duration
	RematchDeadline     time.Duration
	ServerName          string
	Version             string
}

// Defaults mirrors the constants the spec calls out (24h session TTL, 10s
// disconnect grace, 30s heartbeat, 360s inactive-game threshold, 1-minute
// GC tick, 800-1200ms AI latency, 30s rematch deadline).
func Defaults() Config {
	return Config{
		ListenAddr:          ":8080",
		SessionTTL:          registry.SessionInactivityLimit,
		DisconnectGrace:     hub.DefaultDisconnectGrace,
		HeartbeatInterval:   hub.DefaultHeartbeatInterval,
		InactiveGameTimeout: registry.GameInactivityLimit,
		GCInterval:          time.Minute,
		AIDelayMin:          800 * time.Millisecond,
		AIDelayMax:          1200 * time.Millisecond,
		RematchDeadline:     30 * time.Second,
		ServerName:          "sequence",
		Version:             "dev",
	}
}

// Load builds a Config from the supplied viper instance, falling back to
// Defaults() for anything unset. The caller (cmd/server) is responsible for
// binding flags/env vars/a config file onto v before calling Load.
func Load(v *viper.Viper) Config {
	d := Defaults()
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("session_ttl", d.SessionTTL)
	v.SetDefault("disconnect_grace", d.DisconnectGrace)
	v.SetDefault("heartbeat_interval", d.HeartbeatInterval)
	v.SetDefault("inactive_game_timeout", d.InactiveGameTimeout)
	v.SetDefault("gc_interval", d.GCInterval)
	v.SetDefault("ai_delay_min", d.AIDelayMin)
	v.SetDefault("ai_delay_max", d.AIDelayMax)
	v.SetDefault("rematch_deadline", d.RematchDeadline)
	v.SetDefault("server_name", d.ServerName)
	v.SetDefault("version", d.Version)

	return Config{
		ListenAddr:          v.GetString("listen_addr"),
		SessionTTL:          v.GetDuration("session_ttl"),
		DisconnectGrace:     v.GetDuration("disconnect_grace"),
		HeartbeatInterval:   v.GetDuration("heartbeat_interval"),
		InactiveGameTimeout: v.GetDuration("inactive_game_timeout"),
		GCInterval:          v.GetDuration("gc_interval"),
		AIDelayMin:          v.GetDuration("ai_delay_min"),
		AIDelayMax:          v.GetDuration("ai_delay_max"),
		RematchDeadline:     v.GetDuration("rematch_deadline"),
		ServerName:          v.GetString("server_name"),
		Version:             v.GetString("version"),
	}
}
