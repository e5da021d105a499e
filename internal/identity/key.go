package identity

import (
	"encoding/base64"
	"strings"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
)

const (
	testKeyPrefix = "pk_test_"
	liveKeyPrefix = "pk_live_"
)

// FrontendAPIFromKey decodes a publishable key into the frontend API base
// URL. A key is pk_test_ or pk_live_ followed by base64("<host>$").
func FrontendAPIFromKey(key string) (string, error) {
	var encoded string
	switch {
	case strings.HasPrefix(key, testKeyPrefix):
		encoded = strings.TrimPrefix(key, testKeyPrefix)
	case strings.HasPrefix(key, liveKeyPrefix):
		encoded = strings.TrimPrefix(key, liveKeyPrefix)
	default:
		return "", errors.NewPublishableKeyError("missing pk_test_ or pk_live_ prefix")
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(encoded)
	}
	if err != nil {
		return "", errors.NewPublishableKeyError("payload is not base64")
	}

	host, ok := strings.CutSuffix(string(decoded), "$")
	if !ok || host == "" || strings.ContainsAny(host, "/ ") {
		return "", errors.NewPublishableKeyError("payload is not a frontend API host")
	}
	return "https://" + host, nil
}

// IsLiveKey reports whether key belongs to a production instance.
func IsLiveKey(key string) bool {
	return strings.HasPrefix(key, liveKeyPrefix)
}
