package auth

import "go.uber.org/zap"

// logAuthAttempt records one authentication attempt.
// status is "success" or "fail"; identifier is usually the username.
func logAuthAttempt(logger *zap.Logger, authType string, status string, identifier string, message string) {
	fields := []zap.Field{
		zap.String("auth_type", authType),
		zap.String("status", status),
	}
	if identifier != "" {
		fields = append(fields, zap.String("identifier", identifier))
	}
	if message != "" {
		fields = append(fields, zap.String("detail", message))
	}

	if status == "success" {
		logger.Info("auth attempt", fields...)
		return
	}
	logger.Warn("auth attempt", fields...)
}
