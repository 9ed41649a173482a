package vault

import "log/slog"

// Notifier показывает пользователю короткие уведомления (toast).
type Notifier interface {
	Error(msg string)
	Info(msg string)
}

type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Error(msg string) {
	n.log.Error("notification", slog.String("message", msg))
}

func (n *LogNotifier) Info(msg string) {
	n.log.Info("notification", slog.String("message", msg))
}
