// Package mbp collects the small pieces of command-line and logging
// boilerplate shared by this repository's demo binaries, in the style of
// the broker's own mainboilerplate usage (examples/word-count/wordcountctl).
package mbp

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// LogConfig is embedded into a demo binary's top-level Config struct via
// go-flags group tags, mirroring wordcountctl's `Log mbp.LogConfig`.
type LogConfig struct {
	Level  string `long:"level" env:"LEVEL" default:"info" description:"Logging level: debug, info, warn, error"`
	Format string `long:"format" env:"FORMAT" default:"text" description:"Logging format: text, json"`
}

// MustConfigure installs LogConfig's level and formatter on the standard
// logger, exiting the process on an unparseable level.
func (c LogConfig) MustConfigure() {
	var level, err = log.ParseLevel(c.Level)
	Must(err, "unrecognized log level", "level", c.Level)
	log.SetLevel(level)

	switch c.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// Must exits the process with a logged fatal error if err is non-nil.
// fields must be an even-length list of alternating key, value pairs.
func Must(err error, message string, fields ...interface{}) {
	if err == nil {
		return
	}
	var lf = log.Fields{}
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			lf[key] = fields[i+1]
		}
	}
	lf["err"] = err
	log.WithFields(lf).Fatal(message)
	os.Exit(1)
}
