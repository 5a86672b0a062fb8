package bgremoval

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveSuccess(t *testing.T) {
	processed := []byte("processed-image-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/remove-background", r.URL.Path)

		var req removeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		original, err := base64.StdEncoding.DecodeString(req.Image)
		require.NoError(t, err)
		assert.Equal(t, []byte("original-image-bytes"), original)

		json.NewEncoder(w).Encode(removeResponse{
			Success: true,
			Image:   base64.StdEncoding.EncodeToString(processed),
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil)
	result := client.Remove(context.Background(), []byte("original-image-bytes"))
	assert.Equal(t, processed, result)
}

func TestRemoveDisabled(t *testing.T) {
	client := NewClient(Config{}, nil)
	original := []byte("untouched")
	assert.Equal(t, original, client.Remove(context.Background(), original))
}

func TestRemoveFallsBackOnFailure(t *testing.T) {
	original := []byte("original")

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"reported failure", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(removeResponse{Success: false})
		}},
		{"garbage payload", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}},
		{"invalid base64", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(removeResponse{Success: true, Image: "!!not-base64!!"})
		}},
		{"empty image", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(removeResponse{Success: true, Image: ""})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(Config{BaseURL: server.URL}, nil)
			assert.Equal(t, original, client.Remove(context.Background(), original))
		})
	}
}

func TestRemoveUnreachableFallsBack(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, nil)
	original := []byte("original")
	assert.Equal(t, original, client.Remove(context.Background(), original))
}
