package diffusion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTxt2Img(t *testing.T) {
	wantPNG := []byte("fake png bytes")
	var captured txt2imgPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sdapi/v1/txt2img" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"images": []string{base64.StdEncoding.EncodeToString(wantPNG)},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	got, err := c.Txt2Img(context.Background(), GenerateRequest{
		Prompt:         "a fox",
		NegativePrompt: "blurry",
		Steps:          30,
		Width:          768,
		Height:         512,
		CfgScale:       9,
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(wantPNG) {
		t.Errorf("image bytes = %q", got)
	}
	if captured.Prompt != "a fox" || captured.NegativePrompt != "blurry" {
		t.Errorf("prompts = %+v", captured)
	}
	if captured.Steps != 30 || captured.Width != 768 || captured.Height != 512 || captured.CfgScale != 9 {
		t.Errorf("parameters = %+v", captured)
	}
	if captured.SamplerName != defaultSampler {
		t.Errorf("sampler = %q", captured.SamplerName)
	}
}

func TestImg2ImgCarriesInitImage(t *testing.T) {
	var captured img2imgPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sdapi/v1/img2img" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]any{
			"images": []string{base64.StdEncoding.EncodeToString([]byte("out"))},
		})
	}))
	defer srv.Close()

	init := []byte("source image")
	c := NewClient(srv.URL)
	if _, err := c.Img2Img(context.Background(), GenerateRequest{Prompt: "p"}, init, 0.6); err != nil {
		t.Fatal(err)
	}
	if captured.DenoisingStrength != 0.6 {
		t.Errorf("denoising = %v", captured.DenoisingStrength)
	}
	if len(captured.InitImages) != 1 || captured.InitImages[0] != base64.StdEncoding.EncodeToString(init) {
		t.Errorf("init images = %v", captured.InitImages)
	}
}

func TestTxt2ImgEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"images": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Txt2Img(context.Background(), GenerateRequest{}); err == nil {
		t.Error("expected error for empty images")
	}
}

func TestInterrogate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["model"] != "clip" {
			t.Errorf("model = %q", payload["model"])
		}
		w.Write([]byte(`{"caption": "a fox in the snow"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	caption, err := c.Interrogate(context.Background(), []byte("img"), "clip")
	if err != nil {
		t.Fatal(err)
	}
	if caption != "a fox in the snow" {
		t.Errorf("caption = %q", caption)
	}
}

func TestModelOperations(t *testing.T) {
	var refreshed bool
	var setModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sdapi/v1/sd-models":
			w.Write([]byte(`[{"title":"a.safetensors [abc]","model_name":"a","hash":"abc"}]`))
		case "/sdapi/v1/refresh-checkpoints":
			refreshed = true
			w.Write([]byte(`null`))
		case "/sdapi/v1/options":
			if r.Method == http.MethodPost {
				var payload map[string]string
				json.NewDecoder(r.Body).Decode(&payload)
				setModel = payload["sd_model_checkpoint"]
				w.Write([]byte(`null`))
				return
			}
			w.Write([]byte(`{"sd_model_checkpoint":"a.safetensors [abc]"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	if err := c.RefreshModels(ctx); err != nil || !refreshed {
		t.Errorf("RefreshModels err=%v refreshed=%v", err, refreshed)
	}

	models, err := c.Models(ctx)
	if err != nil || len(models) != 1 || models[0].ModelName != "a" || models[0].Hash != "abc" {
		t.Errorf("Models = %v, err = %v", models, err)
	}

	if err := c.SetModel(ctx, "b.safetensors"); err != nil || setModel != "b.safetensors" {
		t.Errorf("SetModel err=%v sent=%q", err, setModel)
	}

	current, err := c.CurrentModel(ctx)
	if err != nil || current != "a.safetensors [abc]" {
		t.Errorf("CurrentModel = %q, err = %v", current, err)
	}
}

func TestCivitaiVersionByHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/model-versions/by-hash/abc" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"name": "v2",
			"baseModel": "SDXL",
			"trainedWords": ["foxcore"],
			"model": {"name": "Foxy"},
			"stats": {"rating": 4.65}
		}`))
	}))
	defer srv.Close()

	c := NewCivitaiClient()
	c.baseURL = srv.URL
	v, err := c.VersionByHash(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}

	desc := v.Describe()
	for _, want := range []string{"CivitAI Name: Foxy", "Version: v2", "Base Model: SDXL", "Rating: 4.7", "Trained Words: foxcore"} {
		if !strings.Contains(desc, want) {
			t.Errorf("Describe() missing %q:\n%s", want, desc)
		}
	}
}
