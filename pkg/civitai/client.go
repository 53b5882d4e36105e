package civitai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"civitdl/pkg/errors"
	"civitdl/pkg/logger"
	"civitdl/pkg/ratelimit"
	"civitdl/pkg/retry"
)

// Client is an authenticated CivitAI TRPC API client. All requests carry
// the API key as a bearer credential; transient failures are retried
// according to the configured policy.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	cdnBaseURL string
	retryCfg   *retry.Config
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a CivitAI API client. A nil retry config falls back to
// the default policy; a nil logger falls back to the global logger.
func NewClient(apiKey string, timeout time.Duration, retryCfg *retry.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiKey:     apiKey,
		baseURL:    BaseURL,
		cdnBaseURL: DeliveryBaseURL,
		retryCfg:   retryCfg,
		logger:     log,
	}
}

// SetBaseURL overrides the TRPC API base. Used in tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// SetDeliveryBaseURL overrides the media CDN base. Used in tests.
func (c *Client) SetDeliveryBaseURL(base string) {
	c.cdnBaseURL = base
}

// SetLimiter installs a request pacer. Every API and media request waits
// for the limiter before going out. A nil limiter disables pacing.
func (c *Client) SetLimiter(limiter ratelimit.Limiter) {
	c.limiter = limiter
}

// doGet performs one GET with the bearer header and classifies the
// response status into the shared error taxonomy.
func (c *Client) doGet(url string) (*http.Response, error) {
	if c.limiter != nil {
		c.limiter.Wait()
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeUnknown, "failed to create request", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.Wrap(errors.ErrorTypeNetwork, "network error", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	if err := c.checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return resp, nil
}

// checkResponseStatus converts HTTP status codes into typed errors.
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errors.Error{
			Type:    errors.ErrorTypeAuth,
			Message: "authentication required",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errors.Error{
			Type:    errors.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errors.Error{
			Type:    errors.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	case errors.IsRetryableStatusCode(resp.StatusCode):
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errors.Error{
			Type:    errors.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	default:
		c.logger.ErrorWithFields("unexpected API error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errors.Error{
			Type:    errors.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}

// getTRPC performs one GET against a TRPC endpoint, unwraps the response
// envelope and decodes the inner json payload into target.
func (c *Client) getTRPC(url string, target interface{}) error {
	resp, err := c.doGet(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeNetwork, "failed to read response body", err)
	}

	var envelope trpcEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse TRPC response", map[string]interface{}{
			"url":          url,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return errors.Wrap(errors.ErrorTypeParsing, "failed to parse TRPC response", err)
	}

	if envelope.Error != nil {
		return c.trpcError(envelope.Error)
	}
	if envelope.Result.Data.JSON == nil {
		return errors.New(errors.ErrorTypeParsing, "TRPC response has no result payload")
	}

	if err := json.Unmarshal(envelope.Result.Data.JSON, target); err != nil {
		return errors.Wrap(errors.ErrorTypeParsing, "failed to decode result payload", err)
	}

	return nil
}

// trpcError maps a TRPC-level error object onto the shared taxonomy.
func (c *Client) trpcError(e *trpcError) error {
	msg := e.JSON.Message
	if msg == "" {
		msg = "TRPC error"
	}
	switch e.JSON.Data.Code {
	case "NOT_FOUND":
		return &errors.Error{Type: errors.ErrorTypeNotFound, Message: msg, Code: e.JSON.Data.HTTPStatus}
	case "UNAUTHORIZED", "FORBIDDEN":
		return &errors.Error{Type: errors.ErrorTypeAuth, Message: msg, Code: e.JSON.Data.HTTPStatus}
	case "INTERNAL_SERVER_ERROR":
		return &errors.Error{Type: errors.ErrorTypeServerError, Message: msg, Code: e.JSON.Data.HTTPStatus}
	default:
		// Unknown codes on a retryable status (TIMEOUT with 504 and the
		// like) are still worth another attempt.
		if errors.IsRetryableStatusCode(e.JSON.Data.HTTPStatus) {
			return &errors.Error{Type: errors.ErrorTypeServerError, Message: msg, Code: e.JSON.Data.HTTPStatus}
		}
		return &errors.Error{Type: errors.ErrorTypeUnknown, Message: msg, Code: e.JSON.Data.HTTPStatus}
	}
}

// getTRPCWithRetry wraps getTRPC in the client's retry policy.
func (c *Client) getTRPCWithRetry(url string, target interface{}) error {
	return retry.Do(func() error {
		return c.getTRPC(url, target)
	}, c.retryCfg)
}

// GetCollection fetches target-level info for a collection.
func (c *Client) GetCollection(collectionID int64) (*Collection, error) {
	c.logger.DebugWithFields("fetching collection", map[string]interface{}{
		"collection_id": collectionID,
	})

	var resp collectionResponse
	if err := c.getTRPCWithRetry(collectionURL(c.baseURL, collectionID), &resp); err != nil {
		return nil, err
	}
	return &resp.Collection, nil
}

// GetPost fetches target-level info for a post.
func (c *Client) GetPost(postID int64) (*Post, error) {
	c.logger.DebugWithFields("fetching post", map[string]interface{}{
		"post_id": postID,
	})

	var post Post
	if err := c.getTRPCWithRetry(postURL(c.baseURL, postID), &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// ListImages fetches one listing page for a target. Pass nil as the cursor
// for the first page and the previous page's NextCursor afterwards.
func (c *Client) ListImages(target Target, cursor json.RawMessage) (*ImagePage, error) {
	c.logger.DebugWithFields("fetching image page", map[string]interface{}{
		"target":     target.String(),
		"has_cursor": cursor != nil,
	})

	var page ImagePage
	if err := c.getTRPCWithRetry(imagePageURL(c.baseURL, target, cursor), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetImageDetail fetches detailed info for one media item.
func (c *Client) GetImageDetail(imageID int64) (*Image, error) {
	var img Image
	if err := c.getTRPCWithRetry(imageDetailURL(c.baseURL, imageID), &img); err != nil {
		return nil, err
	}
	return &img, nil
}

// GetGenerationData fetches prompts and model resources for one item.
func (c *Client) GetGenerationData(imageID int64) (*GenerationData, error) {
	var gen GenerationData
	if err := c.getTRPCWithRetry(generationDataURL(c.baseURL, imageID), &gen); err != nil {
		return nil, err
	}
	return &gen, nil
}

// GetImageTags fetches the tags attached to one item.
func (c *Client) GetImageTags(imageID int64) ([]VotableTag, error) {
	var tags []VotableTag
	if err := c.getTRPCWithRetry(imageTagsURL(c.baseURL, imageID), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// ResolveMediaURL returns the download URL for an image, joining bare CDN
// keys against the client's delivery base. The delivery account mirrors
// the API key, matching the platform's URL scheme.
func (c *Client) ResolveMediaURL(img *Image, filename string) string {
	return ResolveMediaURL(c.cdnBaseURL, img.URL, c.apiKey, filename)
}

// DownloadFile fetches the body at url with the client's retry policy,
// streams it to consume and returns the byte count, so large media never
// sits fully in memory. Each attempt performs a fresh request and hands
// consume a fresh body; a failed attempt's partial read is never carried
// into the next one. The same transient/fatal classification applies as
// for API calls.
func (c *Client) DownloadFile(url string, consume func(io.Reader) error) (int64, error) {
	return retry.DoWithResult(func() (int64, error) {
		resp, err := c.doGet(url)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		body := &countingReader{r: resp.Body}
		if err := consume(body); err != nil {
			return 0, err
		}

		c.logger.DebugWithFields("file downloaded", map[string]interface{}{
			"url":  url,
			"size": body.n,
		})
		return body.n, nil
	}, c.retryCfg)
}

// countingReader tracks how many bytes pass through a streamed download.
type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}
