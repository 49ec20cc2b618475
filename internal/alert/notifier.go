package alert

import "netsentry/internal/storage"

// Notifier delivers an enriched alert to an outbound channel. Notifier
// failures are logged by the sink and never reach the pipeline.
type Notifier interface {
	SendAlert(alert storage.Alert) error
}
