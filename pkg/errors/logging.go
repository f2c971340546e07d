package errors

import (
	"go.uber.org/zap"
)

// LogError logs err at error level with its code attached.
func LogError(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if err == nil {
		return
	}

	allFields := make([]zap.Field, 0, len(fields)+2)
	allFields = append(allFields, zap.Error(err))

	var coded Error
	if As(err, &coded) {
		allFields = append(allFields, zap.String("error_code", coded.Code()))
	}

	allFields = append(allFields, fields...)

	logger.Error(msg, allFields...)
}
