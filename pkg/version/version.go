package version

// Version is the current vendorscout release.
const Version = "0.4.0"

// BuildVersion returns the version string for display.
func BuildVersion() string {
	return "vendorscout version " + Version
}

// APIVersion returns the bare version number for API responses.
func APIVersion() string {
	return Version
}
