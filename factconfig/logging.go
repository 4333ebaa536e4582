package factconfig

import (
	logging "github.com/sirupsen/logrus"
)

// SetLogLevel parses level (one of panic, fatal, error, warn, info, debug,
// trace) and applies it to the standard logger, the same level vocabulary
// a -log-level flag typically accepts. Returns the parse error unconverted
// so the embedding application's own flag-parsing `main` decides how to
// report it.
func SetLogLevel(level string) error {
	parsed, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}
	logging.SetLevel(parsed)
	return nil
}

// ComponentLogger returns a *logging.Entry tagged with a fixed "component"
// field, the pattern every collaborator in this runtime (factsub, factlock,
// factengine) uses to identify its log lines.
func ComponentLogger(component string) *logging.Entry {
	return logging.WithField("component", component)
}
