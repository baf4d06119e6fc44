package crawler

import "strings"

// PlatformUnknown is recorded when no signature matches, and on any failed job.
const PlatformUnknown = "Unknown"

// platformSignatures maps transcript markers to platform labels, checked in
// order. Markers are matched case-insensitively against the root prompt.
var platformSignatures = []struct {
	marker string
	label  string
}{
	{"amazon connect", "Amazon Connect"},
	{"genesys", "Genesys"},
	{"twilio", "Twilio Flex"},
	{"five9", "Five9"},
	{"avaya", "Avaya"},
	{"cisco", "Cisco UCCX"},
}

// DetectPlatform guesses the IVR platform from the root prompt transcript.
func DetectPlatform(transcript string) string {
	lower := strings.ToLower(transcript)
	for _, sig := range platformSignatures {
		if strings.Contains(lower, sig.marker) {
			return sig.label
		}
	}
	return PlatformUnknown
}
