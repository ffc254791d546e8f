package siem

import (
	"context"
	"fmt"

	"github.com/imrishuroy/multiregion-ecommerce/internal/apperr"
)

// CredentialSource resolves a credential by parameter name. aws.ParameterStore and
// aws.SecretsClient both satisfy it.
type CredentialSource interface {
	Get(ctx context.Context, name string) (string, error)
}

// ResolveCredentials fetches every parameter sink needs from src.
func ResolveCredentials(ctx context.Context, src CredentialSource, sink Sink) (map[string]string, error) {
	names := sink.Parameters()
	out := make(map[string]string, len(names))
	for _, name := range names {
		v, err := src.Get(ctx, name)
		if err != nil {
			return nil, apperr.New(apperr.KindConfiguration, fmt.Sprintf("resolve SIEM credential %s", name), err)
		}
		out[name] = v
	}
	return out, nil
}

// PlaceholderCredentials stands in for real values when only printing a plan, so planning never
// reads a secret.
func PlaceholderCredentials(sink Sink) map[string]string {
	out := make(map[string]string, len(sink.Parameters()))
	for _, name := range sink.Parameters() {
		out[name] = "{{resolve:" + name + "}}"
	}
	return out
}
