package license

import (
	"context"
	"log/slog"
)

// MaskLicenseKey masks a license key for logging. Keys are short shared
// secrets; logs keep the first and last four characters for support
// correlation and nothing else.
func MaskLicenseKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

func (m *Manager) logDebug(ctx context.Context, action, msg string, attrs ...slog.Attr) {
	m.logAt(ctx, slog.LevelDebug, action, msg, attrs...)
}

func (m *Manager) logInfo(ctx context.Context, action, msg string, attrs ...slog.Attr) {
	m.logAt(ctx, slog.LevelInfo, action, msg, attrs...)
}

func (m *Manager) logWarn(ctx context.Context, action, msg string, attrs ...slog.Attr) {
	m.logAt(ctx, slog.LevelWarn, action, msg, attrs...)
}

func (m *Manager) logError(ctx context.Context, action, msg string, attrs ...slog.Attr) {
	m.logAt(ctx, slog.LevelError, action, msg, attrs...)
}

func (m *Manager) logAt(ctx context.Context, level slog.Level, action, msg string, attrs ...slog.Attr) {
	all := append([]slog.Attr{slog.String("action", action)}, attrs...)
	m.log.LogAttrs(ctx, level, msg, all...)
}
