// Package host describes the narrow slice of the game-server host runtime
// that the demo pipeline depends on. The real host lives outside this
// module; adapters (the HTTP server in core/internal/serverapp, or an
// embedding program) satisfy these interfaces.
package host

import (
	"context"
	"strings"
)

// PenaltyKind is the kind of penalty the host administered.
type PenaltyKind string

const (
	PenaltyReport  PenaltyKind = "report"
	PenaltyWarning PenaltyKind = "warning"
	PenaltyKick    PenaltyKind = "kick"
	PenaltyTempBan PenaltyKind = "tempban"
	PenaltyBan     PenaltyKind = "ban"
)

// GameFamily is the host's game code for a session (T5, T6, IW4, ...).
type GameFamily string

const (
	GameT5 GameFamily = "T5"
	GameT6 GameFamily = "T6"
)

// NormalizeGame upper-cases and trims a raw game code.
func NormalizeGame(raw string) GameFamily {
	return GameFamily(strings.ToUpper(strings.TrimSpace(raw)))
}

type Player struct {
	ClientID  int64  `json:"client_id"`
	Name      string `json:"name"`
	NetworkID string `json:"network_id"`
}

// Session is a live server session. MapName and ModeName reflect the
// current state every time they are called.
type Session interface {
	ID() string
	GameFamily() GameFamily
	MapName() string
	ModeName() string
	ServerName() string
}

// ReportEvent is raised when a penalty is administered to a player.
type ReportEvent struct {
	Kind     PenaltyKind
	Target   *Player
	Reporter *Player
	Session  Session
}

type ReportHandler func(ctx context.Context, evt ReportEvent)

type LoadHandler func(ctx context.Context)

// EventSource delivers host lifecycle and penalty events.
type EventSource interface {
	OnReport(h ReportHandler)
	OnLoad(h LoadHandler)
}
