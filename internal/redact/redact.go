package redact

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	// Bot tokens (digits:alphanumeric), also when embedded in an API URL
	// such as https://api.telegram.org/bot123456789:AA.../getMe.
	// Keeps the first 6 digits of the bot id.
	botTokenPattern = regexp.MustCompile(`(^|[^0-9])(\d{6})\d*:[a-zA-Z0-9_-]{10,}`)

	// Bearer tokens
	bearerPattern = regexp.MustCompile(`\bBearer\s+[a-zA-Z0-9_\-\.]+`)

	// X-API-Key style headers and api_key query/config values
	apiKeyPattern = regexp.MustCompile(`(?i)\b(x-api-key|api_key|apikey)([=:]\s*)[^\s&"',]+`)

	// Long hex strings (32+ chars)
	hexPattern = regexp.MustCompile(`\b[a-fA-F0-9]{32,}\b`)
)

// minSecretLen guards against masking short values such as "1" or "yes"
// that would mangle unrelated text.
const minSecretLen = 6

// Redact masks well-known secret shapes in s.
func Redact(s string) string {
	s = botTokenPattern.ReplaceAllString(s, "$1$2***")
	s = bearerPattern.ReplaceAllString(s, "Bearer ***")
	s = apiKeyPattern.ReplaceAllString(s, "$1$2***")
	s = hexPattern.ReplaceAllStringFunc(s, func(match string) string {
		return match[:6] + "***"
	})
	return s
}

// Redactor masks configured literal secrets in addition to the patterns
// handled by Redact. It is safe for concurrent use and can be updated
// on config reload.
type Redactor struct {
	mu      sync.RWMutex
	secrets []string
}

// New creates a Redactor for the given secrets.
func New(secrets ...string) *Redactor {
	r := &Redactor{}
	r.SetSecrets(secrets...)
	return r
}

// SetSecrets replaces the set of literal secrets.
func (r *Redactor) SetSecrets(secrets ...string) {
	clean := make([]string, 0, len(secrets))
	seen := make(map[string]bool, len(secrets))
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		if len(s) < minSecretLen || seen[s] {
			continue
		}
		seen[s] = true
		clean = append(clean, s)
	}
	// Longest first so a secret containing another is masked whole.
	sort.Slice(clean, func(i, j int) bool { return len(clean[i]) > len(clean[j]) })

	r.mu.Lock()
	r.secrets = clean
	r.mu.Unlock()
}

// Redact masks configured secrets, then well-known secret shapes.
func (r *Redactor) Redact(s string) string {
	if r != nil {
		r.mu.RLock()
		for _, secret := range r.secrets {
			s = strings.ReplaceAll(s, secret, "***")
		}
		r.mu.RUnlock()
	}
	return Redact(s)
}
