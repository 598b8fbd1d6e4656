package generation

import (
	"errors"
	"strings"
)

// Typed provider errors. A small set of signatures is fatal for the whole
// run: once the provider rejects credentials, quota or the model name, every
// further call is guaranteed to fail too.
var (
	ErrProviderAuth  = errors.New("generation provider rejected credentials")
	ErrProviderQuota = errors.New("generation provider quota or rate limit exceeded")
	ErrModelNotFound = errors.New("generation model not found")
)

// IsFatal reports whether a generator error should stop the run immediately
// instead of advancing to the next chunk.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrProviderAuth) || errors.Is(err, ErrProviderQuota) || errors.Is(err, ErrModelNotFound) {
		return true
	}

	// Signature fallback for providers that surface plain errors.
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "invalid api key") ||
		strings.Contains(s, "incorrect api key") ||
		strings.Contains(s, "status code: 401") ||
		strings.Contains(s, "insufficient_quota") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "status code: 429") ||
		strings.Contains(s, "model_not_found") ||
		strings.Contains(s, "does not exist or you do not have access")
}
