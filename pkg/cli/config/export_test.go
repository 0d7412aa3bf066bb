package config

import "time"

// NewGeminiForTest creates a Gemini config for testing purposes
func NewGeminiForTest(projectID, location string) *Gemini {
	return &Gemini{
		projectID: projectID,
		location:  location,
	}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, projectID, qdrantURL string, dimension int) *Repository {
	return &Repository{
		backend:          backend,
		projectID:        projectID,
		qdrantURL:        qdrantURL,
		qdrantCollection: "segments",
		dimension:        dimension,
	}
}

// NewEmbeddingForTest creates an Embedding config for testing purposes
func NewEmbeddingForTest(backend, redisAddr string) *Embedding {
	return &Embedding{
		backend:     backend,
		batchSize:   10,
		concurrency: 1,
		redisAddr:   redisAddr,
		redisTTL:    time.Hour,
	}
}

// NewGenerationForTest creates a Generation config for testing purposes
func NewGenerationForTest(maxAttempts int, baseDelay, maxDelay, timeout time.Duration, repairs int) *Generation {
	return &Generation{
		maxAttempts:          maxAttempts,
		baseDelay:            baseDelay,
		maxDelay:             maxDelay,
		timeout:              timeout,
		schemaRepairAttempts: repairs,
	}
}

// NewAuthForTest creates an Auth config for testing purposes
func NewAuthForTest(firebaseProjectID, noAuthUID string) *Auth {
	return &Auth{
		firebaseProjectID: firebaseProjectID,
		noAuthUID:         noAuthUID,
	}
}

// NewAppForTest creates an App config for testing purposes
func NewAppForTest(path string) *App {
	return &App{path: path}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: output,
	}
}
