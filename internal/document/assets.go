package document

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAssetTimeout bounds each asset fetch.
const DefaultAssetTimeout = 2 * time.Second

const maxAssetBytes = 4 << 20

// ErrAssetUnavailable is returned when an asset cannot be loaded in time.
var ErrAssetUnavailable = errors.New("document asset unavailable")

// Doer performs HTTP requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AssetLoader fetches images referenced by settings. Sources may be data
// URIs or http(s) URLs.
type AssetLoader struct {
	Client  Doer
	Timeout time.Duration
}

// Load returns the raw bytes of src, waiting at most the configured timeout.
func (a AssetLoader) Load(ctx context.Context, src string) ([]byte, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty source", ErrAssetUnavailable)
	}
	if strings.HasPrefix(src, "data:") {
		return decodeDataURI(src)
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultAssetTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetUnavailable, err)
	}
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrAssetUnavailable, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetUnavailable, err)
	}
	return data, nil
}

func decodeDataURI(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data uri", ErrAssetUnavailable)
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAssetUnavailable, err)
		}
		return data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetUnavailable, err)
	}
	return []byte(text), nil
}
