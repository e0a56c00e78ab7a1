package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"ruok-relay-go/internal/config"
	"ruok-relay-go/internal/model"
)

// Init configures the standard logrus logger from the log configuration and returns it
func Init(cfg config.LogConfig) *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info'", cfg.Level)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.ToLower(cfg.Format) == "text" {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	return log
}

// TriggerFields returns the log fields describing what triggered a run
func TriggerFields(trigger model.TriggerContext) logrus.Fields {
	fields := logrus.Fields{}
	if trigger.EventID != "" {
		fields["trigger_id"] = trigger.EventID
	}
	if trigger.Timestamp != "" {
		fields["trigger_time"] = trigger.Timestamp
	}
	if trigger.Source != "" {
		fields["trigger_source"] = trigger.Source
	}
	return fields
}
