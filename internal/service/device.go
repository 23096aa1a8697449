package service

import (
	"strings"

	"gorm.io/datatypes"
)

// deviceInfoFields is the order in which browsers join navigator and screen properties.
var deviceInfoFields = []string{"user_agent", "language", "screen_width", "screen_height", "platform"}

func normalizeFingerprint(raw string) string {
	return strings.TrimSpace(raw)
}

// parseDeviceInfo splits a "userAgent|language|width|height|platform" fingerprint into
// named fields. Fingerprints in any other shape are kept verbatim under "raw".
func parseDeviceInfo(fingerprint string) datatypes.JSONMap {
	if fingerprint == "" {
		return nil
	}

	parts := strings.Split(fingerprint, "|")
	if len(parts) != len(deviceInfoFields) {
		return datatypes.JSONMap{"raw": fingerprint}
	}

	info := datatypes.JSONMap{}
	for i, field := range deviceInfoFields {
		info[field] = strings.TrimSpace(parts[i])
	}
	return info
}
