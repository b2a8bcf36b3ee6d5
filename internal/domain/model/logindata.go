package model

// LoginData holds the credentials delivered by the server through the
// login-flow redirect URL. All three fields are mandatory; a LoginData value
// only ever exists after the redirect URL parsed completely. Token is opaque
// and treated as a password.
type LoginData struct {
	Username  string
	Token     string
	ServerURL string
}
