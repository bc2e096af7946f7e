// Package logger holds the shared logger for all storage packages.
package logger

import (
	"os"

	logger "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var L = &logger.Logger{
	Out:   os.Stderr,
	Level: logger.InfoLevel,
	Formatter: &prefixed.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp: true,
		ForceFormatting: true,
	},
}

// SetLevel adjusts verbosity for embedding applications. The library
// logs block-structure transitions at debug level only.
func SetLevel(level logger.Level) {
	L.SetLevel(level)
}
