package db

import (
	"net/url"
	"os"
	"regexp"
	"strings"
)

var kvPairRegex = regexp.MustCompile(`(?i)\b(host|user|password|dbname|port|sslmode)=`)

// NormalizeDSN accepts either a URL style DSN (postgres://...) or a lib/pq key=value list.
// It trims quotes and whitespace and, if given key=value form, returns it cleaned.
func NormalizeDSN(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"'")
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return s
	}
	// key=value list expected; if it does not look like one, return unchanged
	// and let the driver error.
	if !kvPairRegex.MatchString(s) {
		return s
	}
	fields := strings.Fields(s)
	cleaned := strings.Join(fields, " ")
	if !strings.Contains(strings.ToLower(cleaned), "sslmode=") {
		cleaned += " sslmode=disable"
	}
	return cleaned
}

// GetNormalizedDSN fetches DATABASE_DSN env var and normalizes it.
func GetNormalizedDSN() string { return NormalizeDSN(os.Getenv("DATABASE_DSN")) }

// ToURLDSN converts a key=value DSN into postgres:// URL form, which is what
// golang-migrate expects. URL DSNs pass through unchanged.
func ToURLDSN(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return dsn
	}
	kv := map[string]string{}
	for _, field := range strings.Fields(dsn) {
		parts := strings.SplitN(field, "=", 2)
		if len(parts) == 2 {
			kv[strings.ToLower(parts[0])] = parts[1]
		}
	}
	u := url.URL{Scheme: "postgres", Host: kv["host"], Path: "/" + kv["dbname"]}
	if port := kv["port"]; port != "" {
		u.Host = u.Host + ":" + port
	}
	if user := kv["user"]; user != "" {
		if pass, ok := kv["password"]; ok {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}
	q := url.Values{}
	if mode := kv["sslmode"]; mode != "" {
		q.Set("sslmode", mode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
