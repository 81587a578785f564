package ledger

import (
	"context"
	"fmt"

	"github.com/stellar/go/clients/federation"
	fedProtocol "github.com/stellar/go/protocols/federation"
)

// FederationAPI is the part of the federation client used by the resolver.
type FederationAPI interface {
	LookupByAddress(addy string) (*fedProtocol.NameResponse, error)
}

// Federation resolves aliases through the federation servers advertised in the
// domain's stellar.toml.
type Federation struct {
	client FederationAPI
}

// NewFederation creates a resolver. A nil client selects the default client for
// the given network.
func NewFederation(client FederationAPI, testnet bool) *Federation {
	if client == nil {
		client = federation.DefaultPublicNetClient
		if testnet {
			client = federation.DefaultTestNetClient
		}
	}
	f := Federation{
		client: client,
	}
	return &f
}

// Resolve returns the account ID an alias points to.
func (f *Federation) Resolve(ctx context.Context, alias string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resp, err := f.client.LookupByAddress(alias)
	if err != nil {
		return "", fmt.Errorf("could not resolve %s: %w", alias, err)
	}
	if resp == nil || resp.AccountID == "" {
		return "", fmt.Errorf("could not resolve %s: empty account id", alias)
	}

	return resp.AccountID, nil
}
