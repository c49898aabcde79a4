package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogDispatcher logs notifications instead of sending them. Used in
// development when no FCM server key is configured.
type LogDispatcher struct {
	log *logrus.Logger
}

func NewLogDispatcher(log *logrus.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	d.log.WithFields(logrus.Fields{
		"title": title,
		"body":  body,
		"data":  data,
	}).Info("Push delivery disabled, logging instead")
	return nil
}
