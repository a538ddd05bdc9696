// Package urlutil provides URL manipulation utilities: environment-variable
// substitution in provider locations, the https-on-port-80 rewrite, and
// credential obfuscation for log output.
package urlutil

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// URL scheme constants.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeFile  = "file"
)

// envVarPattern matches ${VAR} placeholders in provider URLs.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ErrMissingEnvVar is wrapped into the error returned by ExpandEnv when a
// placeholder has no value in the lookup.
type ErrMissingEnvVar struct {
	Name string
}

// Error implements the error interface.
func (e ErrMissingEnvVar) Error() string {
	return fmt.Sprintf("environment variable %s is not set", e.Name)
}

// ExpandEnv substitutes ${VAR} placeholders in a URL using the provided
// lookup (typically os.LookupEnv). A placeholder whose variable is absent is
// an error: provider URLs carry credentials in these slots and a silently
// empty substitution would produce a plausible but wrong upstream request.
func ExpandEnv(raw string, lookup func(string) (string, bool)) (string, error) {
	var missing *ErrMissingEnvVar
	expanded := envVarPattern.ReplaceAllStringFunc(raw, func(match string) string {
		name := match[2 : len(match)-1]
		value, ok := lookup(name)
		if !ok {
			if missing == nil {
				missing = &ErrMissingEnvVar{Name: name}
			}
			return match
		}
		return value
	})
	if missing != nil {
		return "", fmt.Errorf("expanding URL: %w", *missing)
	}
	return expanded, nil
}

// NormalizeStreamURL rewrites https:// to http:// when the authority names
// port 80 explicitly. Some upstreams mislabel plain HTTP as HTTPS on port 80
// and otherwise fail TLS immediately. All other URLs pass through unchanged.
func NormalizeStreamURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if strings.EqualFold(u.Scheme, SchemeHTTPS) && u.Port() == "80" {
		u.Scheme = SchemeHTTP
		return u.String()
	}
	return raw
}

// Obfuscate collapses credentials in a URL for log output: userinfo is
// replaced and all path segments but the last are dropped (IPTV upstreams
// commonly embed user/pass as path segments). The host and the final segment
// survive so an operator can still recognize the endpoint.
func Obfuscate(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "[unparseable-url]"
	}

	if u.User != nil {
		u.User = url.User("xxx")
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) > 1 {
		u.Path = "/.../" + segments[len(segments)-1]
	}
	u.RawQuery = ""

	return u.String()
}

// NormalizeBaseURL normalizes a base URL for consistent use:
//   - Adds http:// scheme if no scheme provided
//   - Removes trailing slash for clean path joining
func NormalizeBaseURL(baseURL string) string {
	if baseURL == "" {
		return ""
	}

	baseURL = strings.TrimSpace(baseURL)

	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return strings.TrimSuffix(baseURL, "/")
}

// JoinPath joins a base URL with a path, ensuring single slashes.
func JoinPath(baseURL, path string) string {
	if baseURL == "" {
		return path
	}

	baseURL = strings.TrimSuffix(baseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return baseURL + path
}

// IsRemoteURL checks if a URL is a remote URL that can be fetched.
func IsRemoteURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// IsFileURL checks if a URL uses the file:// scheme.
func IsFileURL(u string) bool {
	return strings.HasPrefix(u, "file://")
}

// GetScheme returns the scheme of a URL (http, https, file) or empty string
// if unknown.
func GetScheme(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Scheme)
}

// FilePathFromURL extracts the file path from a file:// URL.
func FilePathFromURL(u string) (string, error) {
	if !IsFileURL(u) {
		return "", fmt.Errorf("not a file:// URL: %s", u)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Path == "" {
		return "", fmt.Errorf("empty path in file URL: %s", u)
	}

	return parsed.Path, nil
}
