// Package resizer produces resized image renditions, either through the
// remote resize worker or in process.
package resizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"medialib/internal/config"
	"medialib/internal/domain"
	models "medialib/internal/domain/models/library"
)

// Route served by the resize worker
const resizePath = "/resize-and-upload"

// Cap on worker response bodies
const maxResponseBytes = 1 << 20

// Client calls the remote resize worker. The worker stores every rendition
// itself and answers with their URLs.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a resize worker client. timeout bounds each call.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("resize worker URL cannot be empty")
	}
	if timeout <= 0 {
		timeout = config.DefaultResizeTimeout
	}

	logger.Info("resize worker client initialized", "url", baseURL, "timeout", timeout)

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// workerResponse is the worker's reply. Data holds "size_<N>" -> URL and,
// when the worker reports them, "public_id_<N>" -> deletion handle.
type workerResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    map[string]string `json:"data"`
	Error   string            `json:"error,omitempty"`
	Details string            `json:"details,omitempty"`
}

// Resize sends the image once and maps the reply onto the requested sizes.
// Transport failures, timeouts and non-2xx replies are UpstreamUnavailableError.
func (c *Client) Resize(ctx context.Context, image []byte, fileName string, sizes []int) (map[int]models.BlobRef, error) {
	if len(sizes) == 0 {
		return map[int]models.BlobRef{}, nil
	}

	body, contentType, err := encodeRequest(image, fileName, sizes)
	if err != nil {
		return nil, fmt.Errorf("encode resize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+resizePath, body)
	if err != nil {
		return nil, fmt.Errorf("build resize request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		msg := "resize worker unreachable"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "resize worker timed out"
		}
		return nil, &domain.UpstreamUnavailableError{Message: msg, Upstream: "resizer", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.UpstreamUnavailableError{Message: "failed to read resize worker response", Upstream: "resizer", Err: err}
	}

	var out workerResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.TrimSpace(out.Error + " " + out.Details)
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn("resize worker rejected request",
			"status", resp.StatusCode,
			"file_name", fileName,
			"detail", detail,
		)
		return nil, &domain.UpstreamUnavailableError{
			Message:  fmt.Sprintf("resize worker returned %d: %s", resp.StatusCode, detail),
			Upstream: "resizer",
		}
	}
	if decodeErr != nil {
		return nil, &domain.UpstreamUnavailableError{Message: "malformed resize worker response", Upstream: "resizer", Err: decodeErr}
	}
	if !out.Success {
		return nil, &domain.UpstreamUnavailableError{Message: "resize worker reported failure", Upstream: "resizer"}
	}

	refs := make(map[int]models.BlobRef, len(sizes))
	for _, size := range sizes {
		url := out.Data["size_"+strconv.Itoa(size)]
		if url == "" {
			continue
		}
		refs[size] = models.BlobRef{
			URL:            url,
			DeletionHandle: out.Data["public_id_"+strconv.Itoa(size)],
			Category:       models.CategoryImage,
		}
	}

	c.logger.Debug("resize worker call complete", "file_name", fileName, "requested", len(sizes), "returned", len(refs))
	return refs, nil
}

// encodeRequest builds the multipart body: the image under "image" and the
// wanted sizes as a comma separated "sizes" field
func encodeRequest(image []byte, fileName string, sizes []int) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if fileName == "" {
		fileName = "image"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, fileName))
	h.Set("Content-Type", mimetype.Detect(image).String())
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}

	parts := make([]string, len(sizes))
	for i, size := range sizes {
		parts[i] = strconv.Itoa(size)
	}
	if err := w.WriteField("sizes", strings.Join(parts, ",")); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
