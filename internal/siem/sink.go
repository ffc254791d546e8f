// Package siem assembles the delivery pipelines that forward Security Lake data to an external
// SIEM. A Sink turns a Target into a Resources plan without any I/O; a Provisioner applies it.
package siem

import (
	"sort"
	"strings"

	"github.com/imrishuroy/multiregion-ecommerce/internal/apperr"
)

// Kind names a sink variant.
type Kind string

const (
	KindOpenSearch Kind = "opensearch" // search-index sink
	KindSplunk     Kind = "splunk"     // enterprise log forwarder
	KindElastic    Kind = "elastic"    // generic HTTP log sink
)

// Kinds lists the supported sink kinds.
func Kinds() []Kind {
	return []Kind{KindOpenSearch, KindSplunk, KindElastic}
}

// Sink is one SIEM destination variant.
type Sink interface {
	Kind() Kind
	// Parameters are the credential names Configure expects in Target.Credentials.
	Parameters() []string
	// Configure builds the deployment plan for t. It performs no I/O.
	Configure(t Target) (*Resources, error)
}

// Target describes where the sink is deployed and what it reads from.
type Target struct {
	AccountID         string
	Region            string
	NamePrefix        string
	DataLakeBucketARN string
	KMSKeyARN         string
	SubscriberRoleARN string

	// Credentials holds resolved values keyed by parameter name.
	Credentials map[string]string
}

// NewSink maps a configuration string to a sink. Unknown values are configuration errors.
func NewSink(kind string) (Sink, error) {
	switch Kind(kind) {
	case KindOpenSearch:
		return openSearchSink{}, nil
	case KindSplunk:
		return splunkSink{}, nil
	case KindElastic:
		return elasticSink{}, nil
	default:
		return nil, apperr.Configuration("unsupported SIEM sink type: %s", kind)
	}
}

func (t Target) validate() error {
	var missing []string
	for name, v := range map[string]string{
		"account id":           t.AccountID,
		"region":               t.Region,
		"name prefix":          t.NamePrefix,
		"data lake bucket ARN": t.DataLakeBucketARN,
		"KMS key ARN":          t.KMSKeyARN,
		"subscriber role ARN":  t.SubscriberRoleARN,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return apperr.Configuration("invalid SIEM target: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// credentials returns the values of names, failing on the first one absent or empty.
func (t Target) credentials(names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, n := range names {
		v := strings.TrimSpace(t.Credentials[n])
		if v == "" {
			return nil, apperr.Configuration("missing SIEM credential %s", n)
		}
		out[i] = v
	}
	return out, nil
}
