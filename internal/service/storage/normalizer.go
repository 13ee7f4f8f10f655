// Package storage turns object references reported by workers into URLs clients can fetch.
package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/target/renderjobs/internal/core"
	apperrors "github.com/target/renderjobs/internal/errors"
)

var _ core.URLNormalizer = (*URLNormalizer)(nil)

// Options configures a URLNormalizer.
type Options struct {
	// InternalScheme is the scheme of bucket references, e.g. "store" for store://bucket/key.
	InternalScheme string
	// PublicBaseURL prefixes "<bucket>/<key>".
	PublicBaseURL string
}

// URLNormalizer maps internal bucket references to public URLs and passes
// http(s) URLs through untouched.
type URLNormalizer struct {
	scheme  string
	baseURL *url.URL
}

// NewURLNormalizer validates opts and builds a normalizer.
func NewURLNormalizer(opts Options) (*URLNormalizer, error) {
	scheme := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(opts.InternalScheme), "://"))
	if scheme == "" {
		return nil, errors.New("internal scheme is required")
	}
	if scheme == "http" || scheme == "https" {
		return nil, errors.New("internal scheme must not be http or https")
	}

	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/"))
	if err != nil {
		return nil, errors.New("public base url is invalid")
	}
	if base.Scheme != "http" && base.Scheme != "https" || base.Host == "" {
		return nil, errors.New("public base url must be an absolute http(s) url")
	}

	return &URLNormalizer{scheme: scheme, baseURL: base}, nil
}

// NormalizeToPublicURL returns a public URL for uri. Unknown schemes, missing
// buckets or keys, and relative references are validation errors.
func (n *URLNormalizer) NormalizeToPublicURL(ctx context.Context, uri string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw := strings.TrimSpace(uri)
	if raw == "" {
		return "", apperrors.ValidationField("outputUri", "outputUri is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", apperrors.ValidationField("outputUri", "outputUri is not a valid URI")
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return "", apperrors.ValidationField("outputUri", "outputUri must include a host")
		}
		return raw, nil
	case n.scheme:
		return n.publicURL(u)
	default:
		return "", apperrors.ValidationField("outputUri", "unsupported outputUri scheme "+u.Scheme)
	}
}

func (n *URLNormalizer) publicURL(u *url.URL) (string, error) {
	bucket := u.Host
	key := strings.TrimLeft(u.Path, "/")
	if bucket == "" || key == "" {
		return "", apperrors.ValidationField("outputUri", "outputUri must name a bucket and key")
	}

	out := *n.baseURL
	out.Path = strings.TrimRight(n.baseURL.Path, "/") + "/" + bucket + "/" + key
	out.RawPath = ""
	out.RawQuery = u.RawQuery
	out.Fragment = ""
	return out.String(), nil
}
