package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/leopaint/pkg/model"
	"github.com/m-mizutani/leopaint/pkg/utils/logging"
)

// Uploader publishes a locally held image to a public host. Upload is best
// effort: failure must never block displaying or saving the local image.
type Uploader interface {
	Upload(ctx context.Context, imageDataURI string) (string, error)
}

// ProxyFunc builds the request URL for one relay strategy from the target
// host API URL.
type ProxyFunc func(target string) string

const catboxTarget = "https://catbox.moe/user/api.php"

// defaultStrategies relays the upload through public CORS proxies, tried in
// order until one succeeds.
var defaultStrategies = []ProxyFunc{
	func(target string) string {
		return "https://corsproxy.io/?" + url.QueryEscape(target)
	},
	func(target string) string {
		return "https://api.codetabs.com/v1/proxy?quest=" + url.QueryEscape(target)
	},
	func(target string) string {
		return "https://api.allorigins.win/raw?url=" + url.QueryEscape(target)
	},
}

// CatboxUploader implements Uploader against the catbox.moe file API
type CatboxUploader struct {
	httpClient *http.Client
	target     string
	strategies []ProxyFunc
}

type CatboxOption func(*CatboxUploader)

func WithHTTPClient(client *http.Client) CatboxOption {
	return func(u *CatboxUploader) {
		u.httpClient = client
	}
}

func WithStrategies(strategies ...ProxyFunc) CatboxOption {
	return func(u *CatboxUploader) {
		u.strategies = strategies
	}
}

func NewCatbox(opts ...CatboxOption) *CatboxUploader {
	u := &CatboxUploader{
		httpClient: http.DefaultClient,
		target:     catboxTarget,
		strategies: defaultStrategies,
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

func (u *CatboxUploader) Upload(ctx context.Context, imageDataURI string) (string, error) {
	_, data, err := model.ParseDataURI(imageDataURI)
	if err != nil {
		return "", goerr.Wrap(err, "failed to decode image for upload")
	}

	filename := fmt.Sprintf("leopaint-%d.png", time.Now().UnixMilli())

	var lastErr error
	for i, strategy := range u.strategies {
		hostedURL, err := u.tryUpload(ctx, strategy(u.target), filename, data)
		if err != nil {
			logging.From(ctx).Warn("upload relay attempt failed",
				"strategy", i, "error", err)
			lastErr = err
			continue
		}
		return hostedURL, nil
	}

	return "", goerr.Wrap(model.ErrUploadExhausted, lastErr.Error())
}

func (u *CatboxUploader) tryUpload(ctx context.Context, relayURL, filename string, data []byte) (string, error) {
	// A fresh body per attempt: the multipart reader is consumed by the
	// previous request.
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("reqtype", "fileupload"); err != nil {
		return "", goerr.Wrap(err, "failed to build upload form")
	}
	// Anonymous upload
	if err := writer.WriteField("userhash", ""); err != nil {
		return "", goerr.Wrap(err, "failed to build upload form")
	}
	part, err := writer.CreateFormFile("fileToUpload", filename)
	if err != nil {
		return "", goerr.Wrap(err, "failed to build upload form")
	}
	if _, err := part.Write(data); err != nil {
		return "", goerr.Wrap(err, "failed to build upload form")
	}
	if err := writer.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to build upload form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, relayURL, &buf)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create upload request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "upload request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read upload response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", goerr.New(fmt.Sprintf("upload rejected with status %d", resp.StatusCode),
			goerr.V("body", strings.TrimSpace(string(body))))
	}

	// Success response is a bare URL; anything else is an error message
	hostedURL := strings.TrimSpace(string(body))
	if !strings.HasPrefix(hostedURL, "http") {
		return "", goerr.New("unexpected upload response", goerr.V("body", hostedURL))
	}

	return hostedURL, nil
}
