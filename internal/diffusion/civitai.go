package diffusion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const civitaiBaseURL = "https://civitai.com/api/v1"

// CivitaiClient looks up model metadata on CivitAI by checkpoint hash.
type CivitaiClient struct {
	baseURL string
	client  *http.Client
}

func NewCivitaiClient() *CivitaiClient {
	return &CivitaiClient{
		baseURL: civitaiBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// ModelVersion is the subset of a CivitAI model-version record shown to users.
type ModelVersion struct {
	Name           string   `json:"name"`
	BaseModel      string   `json:"baseModel"`
	Description    string   `json:"description"`
	TrainedWords   []string `json:"trainedWords"`
	TrainingStatus string   `json:"trainingStatus"`
	Model          struct {
		Name string `json:"name"`
	} `json:"model"`
	Stats struct {
		Rating float64 `json:"rating"`
	} `json:"stats"`
}

// VersionByHash fetches the model version matching a checkpoint hash.
func (c *CivitaiClient) VersionByHash(ctx context.Context, hash string) (*ModelVersion, error) {
	url := fmt.Sprintf("%s/model-versions/by-hash/%s", c.baseURL, hash)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("civitai: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("civitai: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("civitai: lookup returned %d: %s", resp.StatusCode, body)
	}

	var version ModelVersion
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return nil, fmt.Errorf("civitai: decode response: %w", err)
	}
	return &version, nil
}

// Describe renders a model version for a chat reply.
func (v *ModelVersion) Describe() string {
	orNA := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}
	name := v.Model.Name
	if name == "" {
		name = "Unknown"
	}
	description := v.Description
	if description == "" {
		description = "No description available"
	}
	lines := []string{
		"CivitAI Name: " + name,
		"Version: " + v.Name,
		"Base Model: " + v.BaseModel,
		fmt.Sprintf("Rating: %.1f", v.Stats.Rating),
		"Description: " + description,
		"Training Status: " + orNA(v.TrainingStatus),
		"Trained Words: " + orNA(strings.Join(v.TrainedWords, ", ")),
	}
	return strings.Join(lines, "\n")
}
