package delivery

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"demos-to-discord/demos"
)

const (
	embedTitle = "🎬 Demo Uploaded for New Report"
	embedColor = 3066993

	statusAttached = "✅ Demo file successfully attached"
	statusNotFound = "❌ No demo file found"

	unavailable = "Unavailable"
	unknown     = "Unknown"
)

// Message is the payload_json document understood by the sink.
type Message struct {
	Embeds []Embed `json:"embeds"`
}

type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Timestamp   string  `json:"timestamp"`
	Color       int     `json:"color"`
	Footer      Footer  `json:"footer"`
	Fields      []Field `json:"fields"`
}

type Footer struct {
	Text string `json:"text"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type EmbedOptions struct {
	WebfrontURL string
	Version     string
	Now         time.Time
}

// Attachment describes the staged demo sent with the message. The zero
// value means no demo is attached.
type Attachment struct {
	Attached bool
	SHA256   string
}

// BuildEmbed renders the report summary. Names are stripped of in-game
// colour codes.
func BuildEmbed(rc demos.ReportContext, att Attachment, opts EmbedOptions) Embed {
	mapName := strings.TrimSpace(rc.Map)
	if mapName == "" {
		mapName = unknown
	}
	serverName := stripColors(rc.ServerName)
	if strings.TrimSpace(serverName) == "" {
		serverName = unknown
	}
	guid := unknown
	if id := strings.TrimSpace(rc.Target.NetworkID); id != "" {
		guid = "`" + id + "`"
	}
	profile := unavailable
	if link, ok := ProfileURL(opts.WebfrontURL, rc.Target.ClientID); ok {
		profile = fmt.Sprintf("[View Web Profile](%s)", link)
	}
	status := statusNotFound
	if att.Attached {
		status = statusAttached
	}
	version := opts.Version
	if version == "" {
		version = "DEV"
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	e := Embed{
		Title: embedTitle,
		Description: fmt.Sprintf("**Target Player:** `%s`\n**Reported By:** `%s`",
			stripColors(rc.Target.Name), stripColors(rc.Reporter.Name)),
		Timestamp: now.UTC().Format(time.RFC3339),
		Color:     embedColor,
		Footer:    Footer{Text: "DemosToDiscord v" + version},
		Fields: []Field{
			{Name: "🖥 Server", Value: "**" + serverName + "**"},
			{Name: "🎮 Game", Value: string(rc.Game), Inline: true},
			{Name: "🗺 Map", Value: mapName, Inline: true},
			{Name: "👤 Player GUID", Value: guid},
			{Name: "🔗 Player Profile", Value: profile},
			{Name: "📎 Demo Status", Value: status},
		},
	}
	if att.Attached && att.SHA256 != "" {
		e.Fields = append(e.Fields, Field{Name: "🔒 Checksum", Value: "`sha256:" + att.SHA256 + "`"})
	}
	return e
}

// ProfileURL links to a player's webfront profile. ok is false when base is
// empty or not an absolute http(s) URL.
func ProfileURL(base string, clientID int64) (string, bool) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", false
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return fmt.Sprintf("%s/Client/Profile/%d", base, clientID), true
}

var colorCode = regexp.MustCompile(`\^[0-9:;]`)

func stripColors(s string) string {
	return colorCode.ReplaceAllString(s, "")
}
