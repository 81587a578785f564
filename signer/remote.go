package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// Remote delegates signing to a web signer. The envelope is posted to the
// signer's endpoint, where the key holder approves or declines it.
type Remote struct {
	client     *http.Client
	endpoint   string
	account    string
	passphrase string
	gone       atomic.Bool
}

type remoteRequest struct {
	XDR               string `json:"xdr"`
	NetworkPassphrase string `json:"network_passphrase"`
}

type remoteResponse struct {
	SignedXDR string `json:"signed_xdr"`
	Error     string `json:"error,omitempty"`
}

// NewRemote creates a web-delegated signer for one account.
func NewRemote(endpoint string, account string, passphrase string, timeout time.Duration) *Remote {
	r := Remote{
		client:     &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		account:    account,
		passphrase: passphrase,
	}
	return &r
}

// Sign posts the envelope and waits for the key holder's decision. A 403 or
// 409 answer means the user declined; an unreachable signer is marked as
// disconnected and stops being ready.
func (r *Remote) Sign(ctx context.Context, envelope string) (string, error) {
	if !r.Ready() {
		return "", ErrDisconnected
	}

	body, err := json.Marshal(remoteRequest{XDR: envelope, NetworkPassphrase: r.passphrase})
	if err != nil {
		return "", fmt.Errorf("could not encode signing request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("could not create signing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var nerr net.Error
		if errors.As(err, &nerr) && !nerr.Timeout() {
			r.gone.Store(true)
			return "", fmt.Errorf("%w: %s", ErrDisconnected, err)
		}
		return "", fmt.Errorf("could not reach signer: %w", err)
	}
	defer resp.Body.Close()

	var out remoteResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)

	switch {
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusConflict:
		return "", ErrDeclined
	case resp.StatusCode == http.StatusGone:
		r.gone.Store(true)
		return "", ErrDisconnected
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("signer returned status %d: %s", resp.StatusCode, out.Error)
	case out.SignedXDR == "":
		return "", errors.New("signer returned an empty envelope")
	}

	return out.SignedXDR, nil
}

// Identity returns the account the remote signer signs for.
func (r *Remote) Identity() (string, bool) {
	return r.account, r.account != ""
}

// Ready reports whether the signer has not been observed to disconnect.
func (r *Remote) Ready() bool {
	return !r.gone.Load()
}
