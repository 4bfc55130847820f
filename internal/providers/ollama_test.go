package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cliphaven/cliphaven/pkg/models"
)

func newOllamaServer(t *testing.T, tagsHits *int32, generate http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tagsHits, 1)
		w.Write([]byte(`{"models":[{"name":"llama3.2:latest"},{"name":"nomic-embed-text:latest"}]}`))
	})
	if generate != nil {
		mux.HandleFunc("/api/generate", generate)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllama_AvailabilityIsCached(t *testing.T) {
	var hits int32
	srv := newOllamaServer(t, &hits, nil)
	o := NewOllama(OllamaConfig{Endpoint: srv.URL}, srv.Client())

	now := time.Unix(1_700_000_000, 0)
	o.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !o.IsAvailable(context.Background()) {
			t.Fatal("IsAvailable() = false, want true")
		}
	}
	if hits != 1 {
		t.Errorf("/api/tags hit %d times within the TTL, want 1", hits)
	}
	if got := o.Descriptor().Models; len(got) != 2 || got[0] != "llama3.2:latest" {
		t.Errorf("Models = %v", got)
	}

	now = now.Add(AvailabilityTTL)
	o.IsAvailable(context.Background())
	if hits != 2 {
		t.Errorf("/api/tags hit %d times after the TTL, want 2", hits)
	}
}

func TestOllama_UnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	o := NewOllama(OllamaConfig{Endpoint: url}, nil)
	if o.IsAvailable(context.Background()) {
		t.Error("IsAvailable() = true for an unreachable daemon")
	}
}

func TestOllama_GenerateTags(t *testing.T) {
	var hits int32
	var req ollamaGenerateRequest
	srv := newOllamaServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&req)
		w.Write([]byte(`{"model":"llama3.2","response":"kubernetes, Config, yaml","done":true,"prompt_eval_count":40,"eval_count":6}`))
	})
	o := NewOllama(OllamaConfig{Endpoint: srv.URL}, srv.Client())

	res, err := o.GenerateTags(context.Background(), "kind: Deployment")
	if err != nil {
		t.Fatalf("GenerateTags() error = %v", err)
	}
	if strings.Join(res.Tags, ",") != "kubernetes,config,yaml" {
		t.Errorf("Tags = %v", res.Tags)
	}
	if req.Stream {
		t.Error("non-streaming generate must send stream:false")
	}
	if res.Usage.TotalTokens != 46 {
		t.Errorf("TotalTokens = %d, want 46", res.Usage.TotalTokens)
	}
}

func TestOllama_ReplyWithoutFieldsIsMalformed(t *testing.T) {
	var hits int32
	srv := newOllamaServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":true}`))
	})
	o := NewOllama(OllamaConfig{Endpoint: srv.URL}, srv.Client())

	if _, err := o.GenerateAnswer(context.Background(), "q", nil); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("GenerateAnswer() error = %v, want ErrMalformedResponse", err)
	}
	if _, err := o.GenerateTags(context.Background(), "content"); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("GenerateTags() error = %v, want ErrMalformedResponse", err)
	}
}

func TestOllama_StreamAnswer(t *testing.T) {
	var hits int32
	srv := newOllamaServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaGenerateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("streaming generate must send stream:true")
		}
		for _, part := range []string{"Use ", "kubectl ", "apply."} {
			fmt.Fprintf(w, `{"response":%q,"done":false}`+"\n", part)
		}
		fmt.Fprintln(w, `{"model":"llama3.2","response":"","done":true,"prompt_eval_count":10,"eval_count":3}`)
	})
	o := NewOllama(OllamaConfig{Endpoint: srv.URL}, srv.Client())

	var chunks []string
	c, err := o.StreamAnswer(context.Background(), "deploy?", nil, func(ch models.StreamChunk) error {
		chunks = append(chunks, ch.Content)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamAnswer() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Errorf("got %d chunks, want 3", len(chunks))
	}
	if c.Content != "Use kubectl apply." {
		t.Errorf("Content = %q", c.Content)
	}
}

func TestOllama_StreamSinkErrorAborts(t *testing.T) {
	var hits int32
	srv := newOllamaServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 5; i++ {
			fmt.Fprintln(w, `{"response":"x","done":false}`)
		}
		fmt.Fprintln(w, `{"done":true}`)
	})
	o := NewOllama(OllamaConfig{Endpoint: srv.URL}, srv.Client())

	stop := errors.New("client gone")
	calls := 0
	_, err := o.StreamAnswer(context.Background(), "q", nil, func(models.StreamChunk) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("StreamAnswer() error = %v, want sink error", err)
	}
	if calls != 1 {
		t.Errorf("sink called %d times, want 1", calls)
	}
}

func TestOllama_StreamTruncatedIsMalformed(t *testing.T) {
	var hits int32
	srv := newOllamaServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"partial","done":false}`)
	})
	o := NewOllama(OllamaConfig{Endpoint: srv.URL}, srv.Client())

	_, err := o.StreamAnswer(context.Background(), "q", nil, func(models.StreamChunk) error { return nil })
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("StreamAnswer() error = %v, want ErrMalformedResponse", err)
	}
}

func TestOllama_ProbeRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"models":[{"name":"llama3.2"}]}`))
	}))
	defer srv.Close()

	o := NewOllama(OllamaConfig{Endpoint: srv.URL, ProbeRetries: 5}, srv.Client())
	if err := o.Probe(context.Background()); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("server called %d times, want 3", calls)
	}
	if !o.IsAvailable(context.Background()) {
		t.Error("IsAvailable() should reuse the successful probe result")
	}
}

func TestOllama_ProbeStopsOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	o := NewOllama(OllamaConfig{Endpoint: srv.URL, ProbeRetries: 5}, srv.Client())
	var se *StatusError
	if err := o.Probe(context.Background()); !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("Probe() error = %v, want StatusError 404", err)
	}
	if calls != 1 {
		t.Errorf("server called %d times, want 1 (4xx is permanent)", calls)
	}
}
