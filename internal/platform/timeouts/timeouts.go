// Package timeouts defines shared timeout constants used across commands.
package timeouts

import "time"

// Command caps a single governance command, including its journal append.
const Command = 5 * time.Second

// ScenarioStep caps one scenario step against the in-process core.
const ScenarioStep = 10 * time.Second

// Maintenance caps a full maintenance run over an event journal.
const Maintenance = 10 * time.Minute

// TelemetryShutdown limits how long exporters may flush on exit.
const TelemetryShutdown = 5 * time.Second
