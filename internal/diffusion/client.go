// Package diffusion talks to a Stable Diffusion WebUI API (the A1111
// /sdapi/v1 surface) and manages per-chat generation profiles.
package diffusion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultSampler = "Euler a"

// Client is a Stable Diffusion WebUI API client. The host is mutable at
// runtime behind a lock so the owner can repoint it without a restart.
// Generation can take minutes on CPU backends, hence the long timeout.
type Client struct {
	client  *http.Client
	sampler string

	mu   sync.RWMutex
	host string
}

func NewClient(host string) *Client {
	return &Client{
		client:  &http.Client{Timeout: 10 * time.Minute},
		sampler: defaultSampler,
		host:    strings.TrimRight(host, "/"),
	}
}

func (c *Client) Host() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

// SetHost repoints the client at a different WebUI instance.
func (c *Client) SetHost(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.host = strings.TrimRight(host, "/")
}

// Configured reports whether an API host is set. Image commands refuse to
// run without one.
func (c *Client) Configured() bool { return c.Host() != "" }

// GenerateRequest carries the parameters of a txt2img or img2img call.
type GenerateRequest struct {
	Prompt         string
	NegativePrompt string
	Steps          int
	Width          int
	Height         int
	CfgScale       int
}

type txt2imgPayload struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
	Steps          int    `json:"steps"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	CfgScale       int    `json:"cfg_scale"`
	SamplerName    string `json:"sampler_name"`
}

type img2imgPayload struct {
	txt2imgPayload
	InitImages        []string `json:"init_images"`
	DenoisingStrength float64  `json:"denoising_strength"`
}

type imagesResponse struct {
	Images []string `json:"images"`
}

// Txt2Img generates an image from text and returns the PNG bytes.
func (c *Client) Txt2Img(ctx context.Context, req GenerateRequest) ([]byte, error) {
	payload := txt2imgPayload{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Steps:          req.Steps,
		Width:          req.Width,
		Height:         req.Height,
		CfgScale:       req.CfgScale,
		SamplerName:    c.sampler,
	}

	var resp imagesResponse
	if err := c.post(ctx, "/sdapi/v1/txt2img", payload, &resp); err != nil {
		return nil, err
	}
	return firstImage(resp)
}

// Img2Img generates an image conditioned on initImage (PNG or JPEG bytes).
func (c *Client) Img2Img(ctx context.Context, req GenerateRequest, initImage []byte, denoisingStrength float64) ([]byte, error) {
	payload := img2imgPayload{
		txt2imgPayload: txt2imgPayload{
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
			Steps:          req.Steps,
			Width:          req.Width,
			Height:         req.Height,
			CfgScale:       req.CfgScale,
			SamplerName:    c.sampler,
		},
		InitImages:        []string{base64.StdEncoding.EncodeToString(initImage)},
		DenoisingStrength: denoisingStrength,
	}

	var resp imagesResponse
	if err := c.post(ctx, "/sdapi/v1/img2img", payload, &resp); err != nil {
		return nil, err
	}
	return firstImage(resp)
}

func firstImage(resp imagesResponse) ([]byte, error) {
	if len(resp.Images) == 0 {
		return nil, fmt.Errorf("diffusion: response has no images")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Images[0])
	if err != nil {
		return nil, fmt.Errorf("diffusion: decode image: %w", err)
	}
	return data, nil
}

// Interrogate asks the backend to caption an image. interrogator selects the
// analysis model ("clip" or "deepbooru").
func (c *Client) Interrogate(ctx context.Context, image []byte, interrogator string) (string, error) {
	payload := map[string]string{
		"image": base64.StdEncoding.EncodeToString(image),
		"model": interrogator,
	}
	var resp struct {
		Caption string `json:"caption"`
	}
	if err := c.post(ctx, "/sdapi/v1/interrogate", payload, &resp); err != nil {
		return "", err
	}
	return resp.Caption, nil
}

// Model is one checkpoint known to the backend.
type Model struct {
	Title     string `json:"title"`
	ModelName string `json:"model_name"`
	Hash      string `json:"hash"`
}

// Models lists the backend's checkpoints.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	var models []Model
	if err := c.get(ctx, "/sdapi/v1/sd-models", &models); err != nil {
		return nil, err
	}
	return models, nil
}

// RefreshModels re-scans the backend's checkpoint directory.
func (c *Client) RefreshModels(ctx context.Context) error {
	return c.post(ctx, "/sdapi/v1/refresh-checkpoints", struct{}{}, nil)
}

// SetModel switches the active checkpoint. The backend loads the model
// synchronously, so this can take a while.
func (c *Client) SetModel(ctx context.Context, name string) error {
	payload := map[string]string{"sd_model_checkpoint": name}
	return c.post(ctx, "/sdapi/v1/options", payload, nil)
}

// CurrentModel returns the active checkpoint title.
func (c *Client) CurrentModel(ctx context.Context) (string, error) {
	var opts struct {
		SDModelCheckpoint string `json:"sd_model_checkpoint"`
	}
	if err := c.get(ctx, "/sdapi/v1/options", &opts); err != nil {
		return "", err
	}
	return opts.SDModelCheckpoint, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("diffusion: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.Host()+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("diffusion: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.Host()+path, nil)
	if err != nil {
		return fmt.Errorf("diffusion: create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("diffusion: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("diffusion: %s returned %d: %s", req.URL.Path, resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("diffusion: decode response: %w", err)
	}
	return nil
}
