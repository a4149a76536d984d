// Package video animates a finished frame with the Veo long-running API.
package video

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GenerateRequest animates one image with a motion prompt.
type GenerateRequest struct {
	Prompt    string
	Image     []byte // PNG seed frame, optional
	RequestID string
}

// Asset is a finished video.
type Asset struct {
	Data   []byte
	URL    string
	Format string
}

// Generator starts a video generation and waits for it.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}

// Veo drives the predictLongRunning endpoint: start the operation, then poll
// until it finishes or the context gives up.
type Veo struct {
	APIKey       string
	BaseURL      string
	Model        string
	HTTPClient   *http.Client
	PollInterval time.Duration
}

// NewVeo builds a client with defaults suitable for the public API.
func NewVeo(apiKey, baseURL, model string) *Veo {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if model == "" {
		model = "veo-3.0-generate-001"
	}
	return &Veo{
		APIKey:       strings.TrimSpace(apiKey),
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Model:        model,
		HTTPClient:   &http.Client{Timeout: 60 * time.Second},
		PollInterval: 5 * time.Second,
	}
}

type veoInstance struct {
	Prompt string    `json:"prompt"`
	Image  *veoImage `json:"image,omitempty"`
}

type veoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type veoStartRequest struct {
	Instances []veoInstance `json:"instances"`
}

type veoOperation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI                string `json:"uri"`
					BytesBase64Encoded string `json:"bytesBase64Encoded"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// Generate starts the operation and polls it to completion.
func (v *Veo) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if v.APIKey == "" {
		return nil, fmt.Errorf("veo: no API key configured")
	}

	inst := veoInstance{Prompt: strings.TrimSpace(req.Prompt)}
	if inst.Prompt == "" {
		inst.Prompt = "Animate this image with subtle, natural motion."
	}
	if len(req.Image) > 0 {
		inst.Image = &veoImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.Image),
			MimeType:           "image/png",
		}
	}

	var op veoOperation
	start := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(v.Model))
	if err := v.call(ctx, http.MethodPost, start, veoStartRequest{Instances: []veoInstance{inst}}, &op); err != nil {
		return nil, fmt.Errorf("veo: start operation: %w", err)
	}
	if op.Name == "" {
		return nil, fmt.Errorf("veo: no operation name returned")
	}

	ticker := time.NewTicker(v.PollInterval)
	defer ticker.Stop()
	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		if err := v.call(ctx, http.MethodGet, "/"+strings.TrimLeft(op.Name, "/"), nil, &op); err != nil {
			return nil, fmt.Errorf("veo: poll operation: %w", err)
		}
	}

	if op.Error != nil {
		return nil, fmt.Errorf("veo: operation failed: %s", op.Error.Message)
	}
	if op.Response == nil || len(op.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
		return nil, fmt.Errorf("veo: operation finished without samples")
	}

	sample := op.Response.GenerateVideoResponse.GeneratedSamples[0].Video
	asset := &Asset{URL: sample.URI, Format: "video/mp4"}
	if sample.BytesBase64Encoded != "" {
		data, err := base64.StdEncoding.DecodeString(sample.BytesBase64Encoded)
		if err != nil {
			return nil, fmt.Errorf("veo: decode sample: %w", err)
		}
		asset.Data = data
	}
	return asset, nil
}

func (v *Veo) call(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, v.BaseURL+path, body)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	q.Set("key", v.APIKey)
	req.URL.RawQuery = q.Encode()
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ Generator = (*Veo)(nil)
