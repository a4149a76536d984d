package genai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"eikona/internal/domain"
	"eikona/internal/imaging"
	"eikona/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey        string
	BaseURL       string
	Model         string
	FallbackModel string
	HTTPClient    *http.Client
	Logger        *infra.Logger
}

// Client is a facade over the Gemini generateContent API, specialized for
// masked image editing. With no API key configured it produces deterministic
// synthetic results, which keeps local and CI environments fully operational
// without network access.
type Client struct {
	apiKey        string
	baseURL       string
	model         string
	fallbackModel string
	httpClient    *http.Client
	logger        *infra.Logger
}

// EditRequest carries one candidate generation: the flattened guide, the
// optional binary mask, reference images, and the assembled instruction.
type EditRequest struct {
	Instruction string
	Guide       []byte // PNG
	Mask        []byte // PNG, nil when the whole frame is editable
	Refs        [][]byte
	Width       int
	Height      int
	RequestID   string
}

// EditResult is one returned candidate image.
type EditResult struct {
	Data  []byte
	MIME  string
	Model string
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	CandidateCount     int      `json:"candidateCount,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// statusError preserves the HTTP status so retry policy can distinguish
// server-side failures from quota and input errors.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("gemini status %d", e.status)
	}
	return fmt.Sprintf("gemini status %d: %s", e.status, e.message)
}

// guideSizeLadder is the sequence of long-edge sizes tried when the model
// keeps failing server-side: oversized inputs are the most common cause of
// 500s on image editing, so each retry shrinks the payload.
var guideSizeLadder = []int{0, 1600, 1280, 1152, 1024}

// NewClient constructs a Gemini client with sane defaults. Callers may
// provide a nil HTTP client; a reusable one with a generous timeout is
// created, since image editing calls routinely run tens of seconds.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-image"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:        strings.TrimSpace(opts.APIKey),
		baseURL:       baseURL,
		model:         model,
		fallbackModel: strings.TrimSpace(opts.FallbackModel),
		httpClient:    client,
		logger:        logger,
	}, nil
}

// Model returns the configured primary model identifier.
func (c *Client) Model() string {
	return c.model
}

// EditImage produces one edited candidate. The primary model is tried down
// the guide size ladder; a fallback model, when configured, repeats the
// ladder. Rate limiting surfaces as domain.ErrRateLimited immediately so the
// caller can signal a cooldown instead of hammering the API.
func (c *Client) EditImage(ctx context.Context, req EditRequest) (*EditResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.apiKey == "" {
		return c.syntheticEdit(req)
	}

	models := []string{c.model}
	if c.fallbackModel != "" && c.fallbackModel != c.model {
		models = append(models, c.fallbackModel)
	}

	longEdge := req.Width
	if req.Height > longEdge {
		longEdge = req.Height
	}

	var lastErr error
	for _, model := range models {
		for _, long := range guideSizeLadder {
			if long > 0 && longEdge <= long {
				// Shrinking is the point of the ladder; skip steps that
				// would retry the identical payload.
				continue
			}
			attempt, err := c.resizeRequest(req, long)
			if err != nil {
				return nil, err
			}
			res, err := c.remoteEdit(ctx, model, attempt)
			if err == nil {
				return res, nil
			}
			lastErr = err

			var se *statusError
			switch {
			case errors.As(err, &se) && se.status == http.StatusTooManyRequests:
				return nil, fmt.Errorf("%w: %s", domain.ErrRateLimited, se.message)
			case errors.As(err, &se) && se.status >= 500:
				c.logger.Warn().
					Err(err).
					Str("model", model).
					Int("long_edge", long).
					Str("request_id", req.RequestID).
					Msg("genai: server error, stepping down guide size")
				continue
			case errors.As(err, &se):
				// Client-side error: smaller inputs will not help, but a
				// different model might.
				c.logger.Warn().
					Err(err).
					Str("model", model).
					Str("request_id", req.RequestID).
					Msg("genai: request rejected, trying next model")
			default:
				c.logger.Warn().
					Err(err).
					Str("model", model).
					Str("request_id", req.RequestID).
					Msg("genai: edit attempt failed")
			}
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, lastErr)
}

// resizeRequest returns req with guide and mask downscaled to the given long
// edge. A zero long edge means the original size.
func (c *Client) resizeRequest(req EditRequest, long int) (EditRequest, error) {
	if long <= 0 {
		return req, nil
	}
	current := req.Width
	if req.Height > current {
		current = req.Height
	}
	if current <= long {
		return req, nil
	}

	guide, w, h, err := downscalePNG(req.Guide, long)
	if err != nil {
		return EditRequest{}, fmt.Errorf("resize guide: %w", err)
	}
	out := req
	out.Guide = guide
	out.Width = w
	out.Height = h
	if len(req.Mask) > 0 {
		// NearestNeighbor keeps the mask strictly binary through the resize.
		mask, err := downscaleMask(req.Mask, w, h)
		if err != nil {
			return EditRequest{}, fmt.Errorf("resize mask: %w", err)
		}
		out.Mask = mask
	}
	return out, nil
}

func (c *Client) remoteEdit(ctx context.Context, model string, req EditRequest) (*EditResult, error) {
	parts := []geminiPart{{Text: req.Instruction}}
	parts = append(parts, inlinePNG(req.Guide))
	if len(req.Mask) > 0 {
		parts = append(parts, inlinePNG(req.Mask))
	}
	for _, ref := range req.Refs {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: http.DetectContentType(ref),
			Data:     base64.StdEncoding.EncodeToString(ref),
		}})
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			CandidateCount:     1,
			ResponseModalities: []string{"IMAGE"},
		},
	}

	var response geminiGenerateContentResponse
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(model))

	// Transient transport failures retry with jittered exponential backoff;
	// HTTP-level errors are surfaced to the ladder above instead.
	operation := func() error {
		err := c.invokeGemini(ctx, path, payload, &response)
		if err == nil {
			return nil
		}
		var se *statusError
		if errors.As(err, &se) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("decode inline data: %w", err)
			}
			mime := part.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return &EditResult{Data: data, MIME: mime, Model: model}, nil
		}
	}
	return nil, fmt.Errorf("no image content returned")
}

func (c *Client) invokeGemini(ctx context.Context, path string, payload any, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		se := &statusError{status: resp.StatusCode}
		var apiErr geminiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			se.message = apiErr.Error.Message
		} else {
			data, _ := io.ReadAll(resp.Body)
			se.message = strings.TrimSpace(string(data))
		}
		return se
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func inlinePNG(data []byte) geminiPart {
	return geminiPart{InlineData: &geminiInlineData{
		MimeType: "image/png",
		Data:     base64.StdEncoding.EncodeToString(data),
	}}
}

func downscalePNG(data []byte, long int) ([]byte, int, int, error) {
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, 0, 0, err
	}
	scaled := imaging.DownscaleToLongEdge(img, long)
	out, err := imaging.EncodePNG(scaled)
	if err != nil {
		return nil, 0, 0, err
	}
	b := scaled.Bounds()
	return out, b.Dx(), b.Dy(), nil
}

func downscaleMask(data []byte, w, h int) ([]byte, error) {
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	sb := img.Bounds()
	for y := 0; y < h; y++ {
		sy := sb.Min.Y + y*sb.Dy()/h
		for x := 0; x < w; x++ {
			sx := sb.Min.X + x*sb.Dx()/w
			dst.Set(x, y, img.At(sx, sy))
		}
	}
	return imaging.EncodePNG(dst)
}

// syntheticEdit renders a deterministic placeholder candidate sized like the
// guide, so the whole merge and export pipeline stays exercised offline.
func (c *Client) syntheticEdit(req EditRequest) (*EditResult, error) {
	seed := deterministicSeed(req.RequestID, req.Instruction, len(req.Guide), len(req.Mask))
	data, err := renderSyntheticImage(req.Width, req.Height, seed)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Msg("genai: generated synthetic edit candidate")
	return &EditResult{Data: data, MIME: "image/png", Model: "synthetic"}, nil
}

func renderSyntheticImage(width, height int, seed string) ([]byte, error) {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripe := height / 12
	if stripe < 32 {
		stripe = 32
	}
	for y := 0; y < height; y += stripe * 2 {
		end := y + stripe
		if end > height {
			end = height
		}
		draw.Draw(img, image.Rect(0, y, width, end), &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if len(seed) < 6 {
		seed = "9aa1b2c3d4e5f607"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		var v uint8
		_, _ = fmt.Sscanf(segment[i*2:i*2+2], "%02x", &v)
		rgb[i] = v
	}
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(hasher, "%v|", part)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}
