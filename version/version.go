package version

// Version is the current luna release.
var Version = "0.1.0"
