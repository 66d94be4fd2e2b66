package version

// Version is overridden at build time with -ldflags "-X demos-to-discord/core/internal/version.Version=...".
var Version = "1.1.0"
