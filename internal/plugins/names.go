package plugins

import (
	"fmt"
	"regexp"
	"strings"
)

// maxNameLen bounds listener names so hook logs stay on one line.
const maxNameLen = 64

// A listener name starts with a lowercase letter and continues with
// lowercase letters, digits or single separators ('-', '_', '.').
var listenerNameRe = regexp.MustCompile(`^[a-z][a-z0-9]*([-_.][a-z0-9]+)*$`)

// ValidateName checks the name of a plugin declared in a script. The name is
// tapped onto the run and done hooks as the listener name, so it must be a
// listener name and must not shadow a built-in plugin.
func ValidateName(name string) error {
	switch {
	case len(name) > maxNameLen:
		return fmt.Errorf("invalid plugin name %q: longer than %d characters", truncate(name), maxNameLen)
	case !listenerNameRe.MatchString(name):
		return fmt.Errorf("invalid plugin name %q: want lowercase letters and digits joined by '-', '_' or '.'", name)
	}
	if _, ok := builtins[name]; ok {
		return fmt.Errorf("invalid plugin name %q: reserved by the built-in plugin (built-ins: %s)", name, strings.Join(Names(), ", "))
	}
	return nil
}

func truncate(name string) string {
	if len(name) <= 16 {
		return name
	}
	return name[:16] + "..."
}
