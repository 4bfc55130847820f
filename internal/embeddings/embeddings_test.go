package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

type secrets map[string]string

func (s secrets) Save(k, v string) bool { s[k] = v; return true }
func (s secrets) Load(k string) (string, bool) {
	v, ok := s[k]
	return v, ok
}
func (s secrets) Delete(k string) bool { delete(s, k); return true }

func TestOllamaDriver_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s, want /api/embed", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Model != "all-minilm" {
			t.Errorf("model = %s, want all-minilm", req.Model)
		}
		out := ollamaEmbedResponse{}
		for i := range req.Input {
			out.Embeddings = append(out.Embeddings, []float64{float64(i), 1})
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	d := NewOllamaDriver(srv.URL+"/", "all-minilm")
	if d.Dimensions() != 384 {
		t.Errorf("Dimensions() = %d, want 384", d.Dimensions())
	}
	got, err := d.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	want := [][]float64{{0, 1}, {1, 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Embed() = %v, want %v", got, want)
	}
	if err := d.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() = %v", err)
	}
}

func TestOllamaDriver_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewOllamaDriver(srv.URL, "", WithOllamaBatchSize(1))
	if _, err := d.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("Embed() on 404 should fail")
	}
	if _, err := d.Embed(context.Background(), []string{"x", "y"}); !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("Embed() = %v, want ErrBatchTooLarge", err)
	}
	if got, err := d.Embed(context.Background(), nil); got != nil || err != nil {
		t.Errorf("Embed(nil) = %v, %v", got, err)
	}
}

func TestOpenAIDriver_EmbedReordersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s, want /embeddings", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(openAIEmbedResponse{Data: []openAIEmbedData{
			{Index: 1, Embedding: []float64{2}},
			{Index: 0, Embedding: []float64{1}},
		}})
	}))
	defer srv.Close()

	d := NewOpenAIDriver(secrets{"openai_api_key": "sk-test"}, "", WithOpenAIEndpoint(srv.URL))
	got, err := d.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if !reflect.DeepEqual(got, [][]float64{{1}, {2}}) {
		t.Errorf("Embed() = %v", got)
	}
}

func TestOpenAIDriver_MissingKey(t *testing.T) {
	d := NewOpenAIDriver(secrets{}, "text-embedding-3-large")
	if d.Dimensions() != 3072 {
		t.Errorf("Dimensions() = %d, want 3072", d.Dimensions())
	}
	if _, err := d.Embed(context.Background(), []string{"x"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Embed() = %v, want ErrMissingAPIKey", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("local", NewOllamaDriver("", ""))
	r.Register("cloud", NewOpenAIDriver(secrets{}, ""))

	if got := r.List(); !reflect.DeepEqual(got, []string{"cloud", "local"}) {
		t.Errorf("List() = %v", got)
	}
	if d, err := r.Get("local"); err != nil || d.Kind() != "ollama" {
		t.Errorf("Get(local) = %v, %v", d, err)
	}
	if _, err := r.Get("missing"); !errors.Is(err, ErrDriverNotFound) {
		t.Errorf("Get(missing) = %v, want ErrDriverNotFound", err)
	}
	if errs := r.HealthCheckAll(context.Background()); !errors.Is(errs["cloud"], ErrMissingAPIKey) {
		t.Errorf("HealthCheckAll()[cloud] = %v", errs["cloud"])
	}
}
