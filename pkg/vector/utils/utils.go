// Package vectorutils builds a vector.Driver from configuration.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/papercomputeco/memorag/pkg/vector"
	"github.com/papercomputeco/memorag/pkg/vector/chroma"
	"github.com/papercomputeco/memorag/pkg/vector/flat"
	"github.com/papercomputeco/memorag/pkg/vector/qdrant"
	"github.com/papercomputeco/memorag/pkg/vector/sqlitevec"
)

// SupportedProviders lists the accepted vector store provider names.
var SupportedProviders = []string{"flat", "sqlite", "chroma", "qdrant"}

type NewVectorDriverOpts struct {
	// ProviderType is one of SupportedProviders. Empty selects "flat".
	ProviderType string

	// Target is the provider location: a database path for sqlite, an
	// http(s) URL for chroma, a host[:port] for qdrant.
	Target string

	APIKey     string
	Collection string
	Dimensions uint
	Logger     *slog.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "", "flat":
		return flat.NewDriver(int(o.Dimensions)), nil

	case "sqlite":
		target := o.Target
		if target == "" {
			target = ":memory:"
		}
		return sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
			DBPath:     target,
			Dimensions: o.Dimensions,
		}, o.Logger)

	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL:            o.Target,
			CollectionName: o.Collection,
		}, o.Logger)

	case "qdrant":
		host, port, tls, err := parseQdrantTarget(o.Target)
		if err != nil {
			return nil, err
		}
		return qdrant.NewDriver(ctx, qdrant.Config{
			Host:           host,
			Port:           port,
			APIKey:         o.APIKey,
			UseTLS:         tls,
			CollectionName: o.Collection,
			Dimensions:     o.Dimensions,
		}, o.Logger)

	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

// parseQdrantTarget accepts "host", "host:port" or a grpc(s):// URL.
func parseQdrantTarget(target string) (string, int, bool, error) {
	if target == "" {
		return "localhost", qdrant.DefaultPort, false, nil
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		u, err = url.Parse("grpc://" + target)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid qdrant target %q: %w", target, err)
		}
	}

	port := qdrant.DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid qdrant port %q: %w", p, err)
		}
	}
	return u.Hostname(), port, u.Scheme == "grpcs" || u.Scheme == "https", nil
}
