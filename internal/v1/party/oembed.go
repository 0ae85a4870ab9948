package party

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const titleResolveTimeout = 5 * time.Second

func newBoundedContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), titleResolveTimeout)
}

// TitleResolver fills in a human title for a YouTube video ID. Failures
// are best-effort: the caller falls back to the raw ID or URL tail.
type TitleResolver interface {
	ResolveTitle(ctx context.Context, videoId string) (string, error)
}

// OEmbedResolver resolves YouTube titles via the public oEmbed endpoint.
type OEmbedResolver struct {
	client *http.Client
}

// NewOEmbedResolver builds a resolver bound by titleResolveTimeout per call.
func NewOEmbedResolver() *OEmbedResolver {
	return &OEmbedResolver{client: &http.Client{Timeout: titleResolveTimeout}}
}

type oEmbedResponse struct {
	Title string `json:"title"`
}

func (o *OEmbedResolver) ResolveTitle(ctx context.Context, videoId string) (string, error) {
	watchUrl := "https://www.youtube.com/watch?v=" + url.QueryEscape(videoId)
	endpoint := "https://www.youtube.com/oembed?url=" + url.QueryEscape(watchUrl) + "&format=json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oembed lookup failed: status %d", resp.StatusCode)
	}

	var body oEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Title, nil
}
