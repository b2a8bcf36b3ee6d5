package application

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrefix = "parlor://login/"

func TestParseLoginData_Valid(t *testing.T) {
	raw := "parlor://login/server:https%3A%2F%2Fcloud.example&user:alice&password:tok123"

	data := ParseLoginData(testPrefix, raw)

	require.NotNil(t, data)
	assert.Equal(t, "alice", data.Username)
	assert.Equal(t, "tok123", data.Token)
	assert.Equal(t, "https://cloud.example", data.ServerURL)
}

func TestParseLoginData_FieldOrderIrrelevant(t *testing.T) {
	raw := "parlor://login/password:tok123&server:https%3A%2F%2Fcloud.example&user:alice"

	data := ParseLoginData(testPrefix, raw)

	require.NotNil(t, data)
	assert.Equal(t, "alice", data.Username)
	assert.Equal(t, "tok123", data.Token)
	assert.Equal(t, "https://cloud.example", data.ServerURL)
}

func TestParseLoginData_RoundTrip(t *testing.T) {
	username := "user with spaces"
	token := "t0k/&:n?#"
	serverURL := "https://cloud.example/nested/path"

	raw := testPrefix +
		"server:" + url.QueryEscape(serverURL) +
		"&user:" + url.QueryEscape(username) +
		"&password:" + url.QueryEscape(token)

	data := ParseLoginData(testPrefix, raw)

	require.NotNil(t, data)
	assert.Equal(t, username, data.Username)
	assert.Equal(t, token, data.Token)
	assert.Equal(t, serverURL, data.ServerURL)
}

func TestParseLoginData_WrongPrefix(t *testing.T) {
	assert.Nil(t, ParseLoginData(testPrefix, "https://cloud.example/server:a&user:b&password:c"))
}

func TestParseLoginData_ShorterThanPrefix(t *testing.T) {
	assert.Nil(t, ParseLoginData(testPrefix, "parlor://"))
}

func TestParseLoginData_MissingField(t *testing.T) {
	assert.Nil(t, ParseLoginData(testPrefix, "parlor://login/server:https%3A%2F%2Fcloud.example&user:alice"))
}

func TestParseLoginData_ExtraField(t *testing.T) {
	raw := "parlor://login/server:a&user:b&password:c&user:d"
	assert.Nil(t, ParseLoginData(testPrefix, raw))
}

func TestParseLoginData_SmuggledSeparator(t *testing.T) {
	// An unencoded "&" in a value splits into a fourth segment and must
	// reject the whole parse rather than yield a partial record.
	raw := "parlor://login/server:https%3A%2F%2Fcloud.example&user:alice&password:tok&123"
	assert.Nil(t, ParseLoginData(testPrefix, raw))
}

func TestParseLoginData_UnknownKey(t *testing.T) {
	assert.Nil(t, ParseLoginData(testPrefix, "parlor://login/server:a&user:b&secret:c"))
}

func TestParseLoginData_DuplicateKey(t *testing.T) {
	assert.Nil(t, ParseLoginData(testPrefix, "parlor://login/user:a&user:b&password:c"))
}

func TestParseLoginData_EmptyValue(t *testing.T) {
	assert.Nil(t, ParseLoginData(testPrefix, "parlor://login/server:a&user:&password:c"))
}

func TestParseLoginData_UndecodableValue(t *testing.T) {
	assert.Nil(t, ParseLoginData(testPrefix, "parlor://login/server:a&user:%zz&password:c"))
}

func TestParseLoginData_KeyWithoutSeparator(t *testing.T) {
	assert.Nil(t, ParseLoginData(testPrefix, "parlor://login/server:a&user&password:c"))
}

func TestLoginURLPrefix(t *testing.T) {
	assert.Equal(t, "parlor://login/", LoginURLPrefix("parlor"))
}
