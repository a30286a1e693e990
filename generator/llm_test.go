package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go/option"

	"wechat_ai_editor/docimport"
)

func TestNewLLM(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *LLMSettings
		wantErr bool
	}{
		{name: "nil", cfg: nil, wantErr: true},
		{name: "no provider", cfg: &LLMSettings{}, wantErr: true},
		{name: "openai", cfg: &LLMSettings{Provider: "openai", Model: "gpt-4o", APIKey: "k"}},
		{name: "openai without key", cfg: &LLMSettings{Provider: "openai", Model: "gpt-4o"}, wantErr: true},
		{name: "deepseek without base url", cfg: &LLMSettings{Provider: "deepseek", Model: "m", APIKey: "k"}, wantErr: true},
		{name: "deepseek", cfg: &LLMSettings{Provider: "deepseek", Model: "m", APIKey: "k", BaseURL: "https://api.deepseek.com/v1"}},
		{name: "ollama", cfg: &LLMSettings{Provider: "ollama", Model: "llava", BaseURL: "http://localhost:11434"}},
		{name: "ollama without model", cfg: &LLMSettings{Provider: "ollama"}, wantErr: true},
		{name: "mock", cfg: &LLMSettings{Provider: "mock"}},
		{name: "unknown", cfg: &LLMSettings{Provider: "gemini"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewLLM(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil || client == nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestOpenAILLMComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"<p>formatted</p>"}}]}`)
	}))
	defer srv.Close()

	llm, err := NewOpenAILLMFromConfig(&LLMSettings{Model: "gpt-4o", APIKey: "test", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	doc := docimport.PDF("paper.pdf", []byte("%PDF"))
	req, _ := BuildRequest("text", testAssets(1), DefaultConfig(), &doc)
	got, err := llm.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "<p>formatted</p>" {
		t.Errorf("unexpected reply %q", got)
	}

	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(msgs))
	}
	user, _ := msgs[1].(map[string]any)
	parts, _ := user["content"].([]any)
	var types []string
	for _, p := range parts {
		m, _ := p.(map[string]any)
		types = append(types, m["type"].(string))
	}
	want := []string{"file", "text", "image_url", "text"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("part types = %v, want %v", types, want)
	}
}

func TestOllamaLLMComplete(t *testing.T) {
	var got struct {
		Model  string   `json:"model"`
		Prompt string   `json:"prompt"`
		System string   `json:"system"`
		Images []string `json:"images"`
		Stream *bool    `json:"stream"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, `{"model":"llava","response":"<p>local</p>","done":true}`+"\n")
	}))
	defer srv.Close()

	llm, err := NewOllamaLLMFromConfig(&LLMSettings{Model: "llava", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	assets := testAssets(1)
	req, _ := BuildRequest("text", assets, DefaultConfig(), nil)
	reply, err := llm.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "<p>local</p>" {
		t.Errorf("unexpected reply %q", reply)
	}
	if got.Model != "llava" || got.Stream == nil || *got.Stream {
		t.Errorf("unexpected request %+v", got)
	}
	if len(got.Images) != 1 || got.Images[0] != assets[0].Payload {
		t.Errorf("image not forwarded: %v", got.Images)
	}
	if !strings.Contains(got.Prompt, InputMarker) {
		t.Error("instruction missing from prompt")
	}
}

func TestOllamaRejectsDocuments(t *testing.T) {
	llm, err := NewOllamaLLMFromConfig(&LLMSettings{Model: "llava", BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	doc := docimport.PDF("a.pdf", []byte("%PDF"))
	req, _ := BuildRequest("", nil, DefaultConfig(), &doc)
	if _, err := llm.Complete(context.Background(), req); !errors.Is(err, ErrUnsupportedPart) {
		t.Errorf("expected ErrUnsupportedPart, got %v", err)
	}
}

func TestMockLLMReferencesEveryImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(pngHeader)
	req := Request{Parts: []Part{
		BinaryPart("a.png", "image/png", payload),
		BinaryPart("b.png", "image/png", payload),
		TextPart(InputMarker + "\nhello"),
	}}
	out, err := MockLLM{}.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	refs := FindPlaceholders(out)
	if len(refs) != 2 || refs[0] != 0 || refs[1] != 1 {
		t.Errorf("unexpected references %v", refs)
	}
}

func slowServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLLMTimeout(t *testing.T) {
	srv := slowServer(t)
	settings := &LLMSettings{Model: "m", APIKey: "k", BaseURL: srv.URL + "/", Timeout: 50 * time.Millisecond}

	openaiLLM, err := NewOpenAILLMFromConfig(settings)
	if err != nil {
		t.Fatalf("openai client: %v", err)
	}
	openaiLLM.Opts = append(openaiLLM.Opts, option.WithMaxRetries(0))

	settings.BaseURL = srv.URL
	ollamaLLM, err := NewOllamaLLMFromConfig(settings)
	if err != nil {
		t.Fatalf("ollama client: %v", err)
	}

	req, _ := BuildRequest("text", nil, DefaultConfig(), nil)
	for name, llm := range map[string]LLMClient{"openai": openaiLLM, "ollama": ollamaLLM} {
		t.Run(name, func(t *testing.T) {
			start := time.Now()
			if _, err := llm.Complete(context.Background(), req); err == nil {
				t.Fatal("expected timeout error")
			}
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Errorf("timeout not applied, took %v", elapsed)
			}
		})
	}
}
