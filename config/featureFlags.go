package config

import (
	"os"
	"strings"
)

// NotificationsDisabled turns off the status notification fan-out entirely
// (no in-app rows, no Pub/Sub publish). Useful for bulk imports and local dev.
//
// Set via env:
// - NOTIFICATIONS_DISABLED=true
func NotificationsDisabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFICATIONS_DISABLED")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// StatusEventsEnabled gates the Pub/Sub status channel separately from the
// in-app notification rows. In-app rows are always written unless
// NotificationsDisabled; the external channel requires an explicit opt-in.
//
// Set via env:
// - PUBSUB_STATUS_EVENTS=true
func StatusEventsEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("PUBSUB_STATUS_EVENTS")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// LinkRepairDryRun forces the link audit repair path to report planned fixes
// without writing them. The link-audit CLI sets this for its default mode.
//
// Set via env:
// - LINK_REPAIR_DRY_RUN=true
func LinkRepairDryRun() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("LINK_REPAIR_DRY_RUN")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
