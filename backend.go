package safeswipe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
)

const (
	// DefaultHuggingFaceURL is the hosted inference endpoint.
	DefaultHuggingFaceURL = "https://api-inference.huggingface.co"

	maxResponseBytes = 1 << 20 // 1MB of JSON is far more than any label list
)

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, img image.Image) ([]LabelScore, error)

func (f BackendFunc) Name() string { return "func" }

func (f BackendFunc) Classify(ctx context.Context, img image.Image) ([]LabelScore, error) {
	return f(ctx, img)
}

// HuggingFaceBackend posts JPEG bytes to a hosted image-classification model.
type HuggingFaceBackend struct {
	BaseURL    string       // default: DefaultHuggingFaceURL
	Model      string       // e.g. "umm-maybe/ai-art-detector"
	Token      string       // bearer credential; empty = not configured
	HTTPClient *http.Client // default: http.DefaultClient
}

// NewHuggingFaceBackend returns a backend for model authenticated by token.
func NewHuggingFaceBackend(model, token string) *HuggingFaceBackend {
	return &HuggingFaceBackend{
		BaseURL:    DefaultHuggingFaceURL,
		Model:      model,
		Token:      token,
		HTTPClient: &http.Client{},
	}
}

func (b *HuggingFaceBackend) Name() string { return "huggingface:" + b.Model }

// Ready reports missing credentials without touching the network.
func (b *HuggingFaceBackend) Ready() error {
	if b.Token == "" {
		return &BackendError{Reason: ReasonNotConfigured, Err: errors.New("no API token")}
	}
	if b.Model == "" {
		return &BackendError{Reason: ReasonNotConfigured, Err: errors.New("no model")}
	}
	return nil
}

func (b *HuggingFaceBackend) Classify(ctx context.Context, img image.Image) ([]LabelScore, error) {
	if err := b.Ready(); err != nil {
		return nil, err
	}

	body, err := EncodeJPEG(img)
	if err != nil {
		return nil, &BackendError{Reason: ReasonTransport, Err: fmt.Errorf("encode image: %w", err)}
	}

	base := b.BaseURL
	if base == "" {
		base = DefaultHuggingFaceURL
	}
	url := strings.TrimRight(base, "/") + "/models/" + b.Model

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &BackendError{Reason: ReasonNotConfigured, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Authorization", "Bearer "+b.Token)

	return doClassify(clientOrDefault(b.HTTPClient), req)
}

// InferenceServiceBackend uploads the image as multipart form data to a
// classifier running next to the process (a locally loaded model behind HTTP).
type InferenceServiceBackend struct {
	URL        string       // e.g. "http://localhost:5000/classify"
	FieldName  string       // multipart field, default "file"
	HTTPClient *http.Client // default: http.DefaultClient
}

// NewInferenceServiceBackend returns a backend posting to url.
func NewInferenceServiceBackend(url string) *InferenceServiceBackend {
	return &InferenceServiceBackend{
		URL:        url,
		FieldName:  "file",
		HTTPClient: &http.Client{},
	}
}

func (b *InferenceServiceBackend) Name() string { return "inference:" + b.URL }

func (b *InferenceServiceBackend) Ready() error {
	if b.URL == "" {
		return &BackendError{Reason: ReasonNotConfigured, Err: errors.New("no inference URL")}
	}
	return nil
}

func (b *InferenceServiceBackend) Classify(ctx context.Context, img image.Image) ([]LabelScore, error) {
	if err := b.Ready(); err != nil {
		return nil, err
	}

	data, err := EncodeJPEG(img)
	if err != nil {
		return nil, &BackendError{Reason: ReasonTransport, Err: fmt.Errorf("encode image: %w", err)}
	}

	field := b.FieldName
	if field == "" {
		field = "file"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, "image.jpg")
	if err != nil {
		return nil, &BackendError{Reason: ReasonTransport, Err: fmt.Errorf("create form file: %w", err)}
	}
	if _, err := part.Write(data); err != nil {
		return nil, &BackendError{Reason: ReasonTransport, Err: fmt.Errorf("write form file: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return nil, &BackendError{Reason: ReasonTransport, Err: fmt.Errorf("close multipart: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.URL, &body)
	if err != nil {
		return nil, &BackendError{Reason: ReasonNotConfigured, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return doClassify(clientOrDefault(b.HTTPClient), req)
}

// Clients carry no timeout of their own: the context from ClassifyImage,
// derived from Config.Timeout, is the only bound on a call.
func clientOrDefault(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

// doClassify performs exactly one request and maps every failure onto a
// BackendError. The response body is capped at maxResponseBytes.
func doClassify(client *http.Client, req *http.Request) ([]LabelScore, error) {
	resp, err := client.Do(req) //nolint:gosec // endpoint comes from process configuration
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &BackendError{Reason: ReasonUnauthorized, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &BackendError{Reason: ReasonStatus, Err: fmt.Errorf("status %d: %s", resp.StatusCode, snippet(data))}
	}

	entries, err := ParseResponse(data)
	if err != nil {
		return nil, &BackendError{Reason: ReasonParse, Err: err}
	}
	return entries, nil
}

func transportError(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &BackendError{Reason: ReasonTimeout, Err: err}
	}
	return &BackendError{Reason: ReasonTransport, Err: err}
}

func snippet(data []byte) string {
	const maxSnippet = 200
	s := strings.TrimSpace(string(data))
	if len(s) > maxSnippet {
		s = s[:maxSnippet]
	}
	return s
}
