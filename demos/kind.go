package demos

import "demos-to-discord/host"

// Kind describes the files a game family writes for one recording.
type Kind struct {
	Extension string
	// SidecarExtension is empty when the family writes no metadata file.
	SidecarExtension string
}

var (
	KindT5 = Kind{Extension: ".demo"}
	KindT6 = Kind{Extension: ".demo", SidecarExtension: ".json"}
)

// KindFor returns the artifact kind for a supported game family.
func KindFor(game host.GameFamily) (Kind, bool) {
	switch host.NormalizeGame(string(game)) {
	case host.GameT5:
		return KindT5, true
	case host.GameT6:
		return KindT6, true
	default:
		return Kind{}, false
	}
}
