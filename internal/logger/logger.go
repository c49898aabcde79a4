package logger

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// Init configures the process-wide logger. Safe to call more than once.
func Init(level string) {
	logger = logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}

func Get() *logrus.Logger {
	once.Do(func() {
		if logger == nil {
			Init("info")
		}
	})
	return logger
}
