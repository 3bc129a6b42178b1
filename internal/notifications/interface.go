package notifications

// Notifier delivers operational alerts to the operator.
type Notifier interface {
	// SendAlert sends an alert with the specified level and message.
	// Levels: "info", "warning", "error", "success".
	SendAlert(level, message string) error
}

// NopNotifier discards alerts. Used when no notifier is configured.
type NopNotifier struct{}

func (NopNotifier) SendAlert(level, message string) error {
	return nil
}
