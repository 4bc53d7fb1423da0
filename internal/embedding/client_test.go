package embedding_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/toolscout/toolscout/internal/embedding"
)

func vector(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = 0.5
	}
	return v
}

func TestEmbed(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"embedding": vector(4)})
	}))
	defer srv.Close()

	c := embedding.NewClient(srv.URL, 4, 5*time.Second)
	v, err := c.Embed(context.Background(), "read_file: Reads a file", embedding.ModeDocument)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 4 {
		t.Errorf("vector length = %d, want 4", len(v))
	}

	if gotBody["inputText"] != "read_file: Reads a file" {
		t.Errorf("inputText = %v", gotBody["inputText"])
	}
	if gotBody["inputType"] != "search_document" {
		t.Errorf("inputType = %v", gotBody["inputType"])
	}
	if gotBody["dimensions"] != float64(4) {
		t.Errorf("dimensions = %v", gotBody["dimensions"])
	}
}

func TestEmbedQueryMode(t *testing.T) {
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		gotType, _ = body["inputType"].(string)
		json.NewEncoder(w).Encode(map[string]interface{}{"embedding": vector(4)})
	}))
	defer srv.Close()

	c := embedding.NewClient(srv.URL, 4, 5*time.Second)
	if _, err := c.Embed(context.Background(), "how do I read a file", embedding.ModeQuery); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if gotType != "search_query" {
		t.Errorf("inputType = %q, want search_query", gotType)
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"embedding": vector(3)})
	}))
	defer srv.Close()

	c := embedding.NewClient(srv.URL, 4, 5*time.Second)
	if _, err := c.Embed(context.Background(), "text", embedding.ModeDocument); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestEmbedServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := embedding.NewClient(srv.URL, 4, 5*time.Second)
	if _, err := c.Embed(context.Background(), "text", embedding.ModeDocument); err == nil {
		t.Fatal("expected service error")
	}
}
