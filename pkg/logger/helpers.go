package logger

// LogAuthStrategy logs the outcome of one authentication strategy attempt
func LogAuthStrategy(strategy string, success bool, err error) {
	fields := map[string]interface{}{
		"strategy": strategy,
		"success":  success,
	}

	logger := GetLogger().WithFields(fields)

	if err != nil {
		logger.WithError(err).Warn("Authentication strategy failed")
	} else if success {
		logger.Info("Authentication strategy succeeded")
	} else {
		logger.Debug("Authentication strategy did not yield a session")
	}
}

// LogCollectProgress logs collection progress for a target
func LogCollectProgress(target string, collected, limit int) {
	fields := map[string]interface{}{
		"target":    target,
		"collected": collected,
	}
	if limit > 0 {
		fields["limit"] = limit
	}

	GetLogger().InfoWithFields("Collection progress", fields)
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	logger := GetLogger().WithField("component", component)

	if len(config) > 0 {
		logger = logger.WithFields(config)
	}

	logger.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}
