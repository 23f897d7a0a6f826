// internal/rtclient/alert.go
package rtclient

// Alerter raises OS-level notifications. Permission is requested once per
// session before first use; implementations back onto whatever the host
// environment offers (browser Notification API, desktop notifier, or
// nothing at all).
type Alerter interface {
	// RequestPermission asks the user for notification permission and
	// reports whether it was granted. It may block on user interaction.
	RequestPermission() bool

	// Alert shows a notification. Failures are non-fatal; the bridge
	// degrades to toast-only.
	Alert(title, message string) error
}

// NopAlerter never asks and never alerts. Useful for headless consumers.
type NopAlerter struct{}

func (NopAlerter) RequestPermission() bool        { return false }
func (NopAlerter) Alert(title, message string) error { return nil }
