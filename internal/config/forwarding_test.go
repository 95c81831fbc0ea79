package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseForwarding_TrimsDedupesAndSorts(t *testing.T) {
	t.Parallel()

	f, err := ParseForwarding(map[string]string{
		KeyServers: " http://tv:8080/ , http://kodi:8080,http://tv:8080,, ",
		KeyTopics:  "b/topic, a/topic ,b/topic",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"http://kodi:8080", "http://tv:8080"}, f.Servers)
	assert.Equal(t, []string{"a/topic", "b/topic"}, f.Topics)
}

func TestParseForwarding_MissingKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		props   map[string]string
		wantKey string
	}{
		{"no servers", map[string]string{KeyTopics: "a"}, KeyServers},
		{"no topics", map[string]string{KeyServers: "http://kodi"}, KeyTopics},
		{"unrelated keys", map[string]string{"other": "x"}, KeyServers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseForwarding(tt.props)
			require.ErrorIs(t, err, ErrMissingKey)

			var fe *ForwardingError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantKey, fe.Key)
		})
	}
}

func TestParseForwarding_RejectsInvalidServers(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"kodi:8080", "ftp://kodi", "http://", "://bad"} {
		_, err := ParseForwarding(map[string]string{KeyServers: raw, KeyTopics: "a"})
		assert.ErrorIs(t, err, ErrInvalidServer, "server %q", raw)
	}
}

func TestParseForwarding_BlankListsAreEmpty(t *testing.T) {
	t.Parallel()

	f, err := ParseForwarding(map[string]string{KeyServers: " , ", KeyTopics: ""})
	require.NoError(t, err)
	assert.Empty(t, f.Servers)
	assert.Empty(t, f.Topics)
}

func TestForwarding_PropertiesRoundTrip(t *testing.T) {
	t.Parallel()

	f := &Forwarding{Topics: []string{"a", "b"}, Servers: []string{"http://x", "http://y"}}
	props := f.Properties()
	assert.Equal(t, "http://x,http://y", props[KeyServers])

	back, err := ParseForwarding(props)
	require.NoError(t, err)
	assert.Equal(t, f, back)
}
