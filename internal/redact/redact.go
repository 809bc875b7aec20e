// Package redact scrubs credentials and internal details from strings before
// they are logged. Upstream provider errors routinely echo request headers
// and connection URLs, so every error logged by the API and the task
// executor goes through Error.
package redact

import "regexp"

// Placeholders substituted for redacted fragments.
const (
	CredentialPlaceholder  = "[REDACTED_CREDENTIAL]"
	ProviderKeyPlaceholder = "[REDACTED_PROVIDER_KEY]"
	TokenPlaceholder       = "[REDACTED_TOKEN]"
	KeyPlaceholder         = "[REDACTED_KEY]"
	EmailPlaceholder       = "[REDACTED_EMAIL]"
	PathPlaceholder        = "[REDACTED_PATH]"
	SQLPlaceholder         = "[REDACTED_SQL]"
	HostPlaceholder        = "[REDACTED_HOST]"
	StackTracePlaceholder  = "[REDACTED_STACK_TRACE]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// rules run in order; earlier rules consume text later ones would
// otherwise split.
var rules = []rule{
	// Userinfo of Postgres, Redis and RabbitMQ URLs.
	{regexp.MustCompile(`(?i)\b(?:postgres(?:ql)?|rediss?|amqps?)://[^@\s/]+@`), CredentialPlaceholder},

	// OpenAI, DeepSeek and DashScope "sk-" keys, Anthropic "sk-ant-" keys
	// and Google "AIza" keys.
	{regexp.MustCompile(`\b(?:sk-[A-Za-z0-9_-]{20,}|AIza[0-9A-Za-z_-]{35})`), ProviderKeyPlaceholder},

	// Authorization header values and bare JWTs.
	{regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_\-.~+/]+=*`), "Bearer " + TokenPlaceholder},
	{regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`), TokenPlaceholder},

	{regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)\s*[=:]\s*['"]?[^'"&\s]+['"]?`), CredentialPlaceholder},
	{regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret|access[_-]?token)\s*[=:]\s*['"]?[A-Za-z0-9_\-.~+/]{8,}['"]?`), KeyPlaceholder},

	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), EmailPlaceholder},

	{regexp.MustCompile(`(?:goroutine \d+ \[|panic: )[\s\S]*`), StackTracePlaceholder},

	{regexp.MustCompile(`(?i)\b(?:SELECT|INSERT|UPDATE|DELETE)\b[^;\n]*`), SQLPlaceholder},

	// Filesystem paths, but not the path part of a URL.
	{regexp.MustCompile(`(^|[\s'"(=])(?:/[\w.-]+){2,}`), "${1}" + PathPlaceholder},

	{regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}:\d{1,5}\b`), HostPlaceholder},
}

// String returns input with every sensitive fragment replaced by its
// placeholder.
func String(input string) string {
	for _, r := range rules {
		if input == "" {
			break
		}
		input = r.pattern.ReplaceAllString(input, r.placeholder)
	}
	return input
}

// Error redacts err's message. A nil error yields an empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
