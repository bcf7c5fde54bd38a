package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/articvpn/vpnctl/internal/common"
)

// authTransport intercepts every outgoing call twice: on the way out it
// attaches the bearer credential if one exists and the request does not
// already carry one, and on the way back it detects a server-reported
// authorization failure and fires the expired hook before any caller-level
// error handling can run.
type authTransport struct {
	base    http.RoundTripper
	token   func() string
	expired func()
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if tok := t.token(); tok != "" && clone.Header.Get(common.AuthHeaderName) == "" {
		clone.Header.Set(common.AuthHeaderName, common.BearerPrefix+tok)
	}
	if clone.Header.Get(common.RequestIDHeaderName) == "" {
		clone.Header.Set(common.RequestIDHeaderName, uuid.NewString())
	}

	resp, err := t.base.RoundTrip(clone)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && t.expired != nil {
		t.expired()
	}

	return resp, nil
}
