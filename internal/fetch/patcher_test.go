package fetch

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatcherAppliesOnce(t *testing.T) {
	original := &recordingTransport{name: "original"}
	var slot http.RoundTripper = original
	p := NewPatcher(&slot)

	wraps := 0
	wrap := func(real http.RoundTripper) http.RoundTripper {
		wraps++
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			req.Header.Set("X-Patched", "1")
			return real.RoundTrip(req)
		})
	}

	assert.False(t, p.Applied())
	assert.True(t, p.Apply(wrap))
	assert.False(t, p.Apply(wrap))
	assert.False(t, p.Apply(wrap))

	assert.Equal(t, 1, wraps)
	assert.True(t, p.Applied())
	assert.Same(t, original, p.Real())

	req, _ := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	resp, err := slot.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "1", req.Header.Get("X-Patched"))
	assert.Equal(t, 1, original.calls)
}

func TestAmbientFollowsSlot(t *testing.T) {
	before := &recordingTransport{name: "before"}
	var slot http.RoundTripper = before
	p := NewPatcher(&slot)

	client := &http.Client{Transport: p.Ambient()}

	get := func() string {
		resp, err := client.Get("http://example.com/")
		require.NoError(t, err)
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return string(b)
	}

	assert.Equal(t, "before", get())

	after := &recordingTransport{name: "after"}
	p.Apply(func(http.RoundTripper) http.RoundTripper { return after })

	assert.Equal(t, "after", get())
	assert.Equal(t, 1, before.calls)
	assert.Equal(t, 1, after.calls)
}

func TestNewPatcherDefaultsToDefaultTransport(t *testing.T) {
	p := NewPatcher(nil)
	assert.Same(t, &http.DefaultTransport, p.slot)
	assert.False(t, p.Applied())
}
