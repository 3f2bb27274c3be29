package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	URL   string   `json:"url"`
	Words []string `json:"words"`
}

func TestEncodeEvents(t *testing.T) {
	messages, err := encodeEvents([]Event{
		{Key: "http://a/1.html", Value: page{URL: "http://a/1.html", Words: []string{"x"}}},
		{Key: "http://a/2.html", Value: page{URL: "http://a/2.html"}},
	})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "http://a/1.html", string(messages[0].Key))
	assert.JSONEq(t, `{"url":"http://a/1.html","words":["x"]}`, string(messages[0].Value))
}

func TestEncodeEventsRejectsUnmarshalable(t *testing.T) {
	_, err := encodeEvents([]Event{{Key: "bad", Value: make(chan int)}})
	assert.ErrorContains(t, err, `"bad"`)
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[page]([]byte(`{"url":"http://a/1.html","words":["hello"]}`))
	require.NoError(t, err)
	assert.Equal(t, page{URL: "http://a/1.html", Words: []string{"hello"}}, got)

	_, err = DecodeJSON[page]([]byte(`{`))
	assert.ErrorContains(t, err, "decoding kafka message")
}
