// Package cliutil holds helpers shared by tether's user-facing output.
package cliutil

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[redacted]"

var (
	secretNamePattern = regexp.MustCompile(`(?i)(PASSWORD|PASSWD|SECRET|TOKEN|API[_-]?KEY|ACCESS[_-]?KEY|PRIVATE[_-]?KEY|CREDENTIALS?)`)
	secretArgPattern  = regexp.MustCompile(`(?i)^(--?[A-Za-z0-9_-]*(?:password|passwd|secret|token|api[_-]?key|access[_-]?key)[A-Za-z0-9_-]*=)(.+)$`)
)

// IsSecretName reports whether an environment variable or flag name looks
// like it carries a credential.
func IsSecretName(name string) bool {
	return secretNamePattern.MatchString(name)
}

// RedactEnv returns a copy of env with credential-like values masked.
func RedactEnv(env map[string]string) map[string]string {
	if env == nil {
		return nil
	}
	out := make(map[string]string, len(env))
	for key, value := range env {
		if value != "" && IsSecretName(key) {
			value = redactedPlaceholder
		}
		out[key] = value
	}
	return out
}

// RedactArgs returns a copy of args with the values of credential-like
// --flag=value arguments masked. A credential flag followed by a separate
// value argument masks that argument.
func RedactArgs(args []string) []string {
	if args == nil {
		return nil
	}
	out := make([]string, len(args))
	maskNext := false
	for i, arg := range args {
		switch {
		case maskNext:
			out[i] = redactedPlaceholder
			maskNext = false
		case secretArgPattern.MatchString(arg):
			out[i] = secretArgPattern.ReplaceAllString(arg, "${1}"+redactedPlaceholder)
		case strings.HasPrefix(arg, "-") && !strings.Contains(arg, "=") && IsSecretName(strings.TrimLeft(arg, "-")):
			out[i] = arg
			maskNext = true
		default:
			out[i] = arg
		}
	}
	return out
}
