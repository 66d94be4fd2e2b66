package demos

import (
	"strings"
	"time"

	"demos-to-discord/host"
)

const unknownName = "UNKNOWN"

// ReportContext is the immutable snapshot of a report taken when the event
// arrives. Later map rotations on the session do not change it.
type ReportContext struct {
	RunID      string
	Reporter   host.Player
	Target     host.Player
	SessionID  string
	ServerName string
	Game       host.GameFamily
	Map        string
	Mode       string
	ReportedAt time.Time
}

// NewReportContext snapshots evt at time at. Missing players are recorded
// with the name UNKNOWN.
func NewReportContext(runID string, evt host.ReportEvent, at time.Time) ReportContext {
	rc := ReportContext{
		RunID:      runID,
		Reporter:   host.Player{Name: unknownName},
		Target:     host.Player{Name: unknownName},
		ReportedAt: at,
	}
	if evt.Reporter != nil {
		rc.Reporter = *evt.Reporter
	}
	if evt.Target != nil {
		rc.Target = *evt.Target
	}
	if strings.TrimSpace(rc.Reporter.Name) == "" {
		rc.Reporter.Name = unknownName
	}
	if strings.TrimSpace(rc.Target.Name) == "" {
		rc.Target.Name = unknownName
	}
	if s := evt.Session; s != nil {
		rc.SessionID = s.ID()
		rc.ServerName = s.ServerName()
		rc.Game = host.NormalizeGame(string(s.GameFamily()))
		rc.Map = s.MapName()
		rc.Mode = s.ModeName()
	}
	return rc
}
