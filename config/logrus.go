/*
logrus.go - Logger construction and the shared error-logging helper

PURPOSE:
  Builds the process logger from Config. Engines receive the *logrus.Logger
  by injection; there is no package-level logger.
*/
package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger from the loaded configuration.
func NewLogger(cfg Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if cfg.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// LogError logs an error with the standard module/funcName fields.
func LogError(log *logrus.Logger, module, funcName, context string, err error) {
	log.WithFields(logrus.Fields{
		"module":   module,
		"funcName": funcName,
		"context":  context,
	}).Error(err.Error())
}
