// Package application contains the login-flow use cases: URL parsing,
// certificate trust, account reconciliation, and session orchestration.
package application

import (
	"net/url"
	"strings"

	"github.com/parlorchat/loginflow/internal/domain/model"
)

// Login redirect URL grammar constants. The full format is
// <scheme>://login/server:<url>&user:<name>&password:<token>
// with every value percent-encoded.
const (
	ProtocolSuffix    = "://"
	LoginURLPath      = "login/"
	loginURLSeparator = "&"
	loginKeyValueSep  = ":"

	loginKeyServer   = "server"
	loginKeyUser     = "user"
	loginKeyPassword = "password"
)

// LoginURLPrefix assembles the redirect URL prefix for an app scheme,
// e.g. "parlor" -> "parlor://login/".
func LoginURLPrefix(scheme string) string {
	return scheme + ProtocolSuffix + LoginURLPath
}

// ParseLoginData parses a login-flow redirect URL into login data. The URL
// must start with prefix and carry exactly the three fields server, user and
// password, separated by "&". Any deviation (wrong prefix, wrong field count,
// unknown key, repeated key, undecodable or empty value) yields nil; a
// partially filled record is never returned.
func ParseLoginData(prefix, raw string) *model.LoginData {
	if len(raw) < len(prefix) || !strings.HasPrefix(raw, prefix) {
		return nil
	}

	values := strings.Split(raw[len(prefix):], loginURLSeparator)
	if len(values) != 3 {
		return nil
	}

	var data model.LoginData
	seen := make(map[string]bool, 3)

	for _, value := range values {
		key, encoded, ok := strings.Cut(value, loginKeyValueSep)
		if !ok || seen[key] {
			return nil
		}

		decoded, err := url.QueryUnescape(encoded)
		if err != nil {
			return nil
		}

		switch key {
		case loginKeyServer:
			data.ServerURL = decoded
		case loginKeyUser:
			data.Username = decoded
		case loginKeyPassword:
			data.Token = decoded
		default:
			return nil
		}
		seen[key] = true
	}

	if data.ServerURL == "" || data.Username == "" || data.Token == "" {
		return nil
	}
	return &data
}
