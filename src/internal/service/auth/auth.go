package auth

import (
	"logseqbridge/src/internal/domain"
)

const missingTokenMessage = "Missing API token. Set LOGSEQ_API_SERVER_TOKEN environment variable, " +
	"use --api-token flag, or include \"token\" in request body. " +
	"Token can be found in Logseq Settings > Features > HTTP APIs Server."

// Resolver picks the Logseq API token for a request.
type Resolver struct {
	configured string
}

// NewResolver takes the token configured at startup (--api-token, else LOGSEQ_API_SERVER_TOKEN).
func NewResolver(configured string) *Resolver {
	return &Resolver{configured: configured}
}

// Resolve prefers a token supplied in the request body over the configured one.
func (r *Resolver) Resolve(fromBody string) (string, error) {
	if fromBody != "" {
		return fromBody, nil
	}
	if r.configured != "" {
		return r.configured, nil
	}
	return "", &domain.AuthError{Message: missingTokenMessage}
}

func (r *Resolver) Configured() bool {
	return r.configured != ""
}
