package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/david/campaign-radar/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ollamaStub(t *testing.T, status int, reply string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(status)
		case "/api/generate":
			calls.Add(1)
			var req generateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "qwen2.5:7b-instruct", req.Model)
			assert.False(t, req.Stream)
			require.NotNil(t, req.Options)
			assert.Equal(t, 0.3, req.Options.Temperature)
			assert.Equal(t, 100, req.Options.NumPredict)
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(generateResponse{Response: reply, Done: true})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestSummarizeUsesModelReply(t *testing.T) {
	srv, calls := ollamaStub(t, http.StatusOK, "  楽天カードで最大10%還元  ")
	s := NewSummarizer(NewOllamaClient(srv.URL, ""), nil)

	got := s.Summarize(context.Background(), "楽天スーパーセール 全ショップ対象", 40)
	assert.Equal(t, "楽天カードで最大10%還元", got)
	assert.EqualValues(t, 1, calls.Load())
}

func TestSummarizeCutsOverlongReply(t *testing.T) {
	reply := strings.Repeat("あ", 51)
	srv, _ := ollamaStub(t, http.StatusOK, reply)
	s := NewSummarizer(NewOllamaClient(srv.URL, ""), nil)

	got := s.Summarize(context.Background(), "text", 40)
	assert.Equal(t, strings.Repeat("あ", 40)+"...", got)

	// Within the 10 rune allowance the reply is kept as is.
	srv2, _ := ollamaStub(t, http.StatusOK, strings.Repeat("い", 50))
	s2 := NewSummarizer(NewOllamaClient(srv2.URL, ""), nil)
	assert.Equal(t, strings.Repeat("い", 50), s2.Summarize(context.Background(), "text", 40))
}

func TestSummarizeFallsBackOnServerError(t *testing.T) {
	srv, _ := ollamaStub(t, http.StatusInternalServerError, "")
	s := NewSummarizer(NewOllamaClient(srv.URL, ""), nil)

	long := strings.Repeat("か", 60)
	assert.Equal(t, strings.Repeat("か", 37)+"...", s.Summarize(context.Background(), long, 40))
	assert.Equal(t, "短い説明", s.Summarize(context.Background(), "短い説明", 40))
}

func TestSummarizeWithoutClient(t *testing.T) {
	s := NewSummarizer(nil, nil)
	assert.Equal(t, "そのまま", s.Summarize(context.Background(), "そのまま", 40))
	assert.False(t, s.Available(context.Background()))
}

func TestSummarizeAllFillsEveryCampaign(t *testing.T) {
	srv, calls := ollamaStub(t, http.StatusOK, "要約")
	s := NewSummarizer(NewOllamaClient(srv.URL, ""), nil)

	campaigns := []models.Campaign{{Title: "a"}, {Title: "b"}, {Title: "c"}}
	s.SummarizeAll(context.Background(), campaigns)

	for _, c := range campaigns {
		assert.Equal(t, "要約", c.Summary)
	}
	assert.EqualValues(t, 3, calls.Load())
}

func TestAvailable(t *testing.T) {
	up, _ := ollamaStub(t, http.StatusOK, "")
	assert.True(t, NewSummarizer(NewOllamaClient(up.URL, ""), nil).Available(context.Background()))

	down, _ := ollamaStub(t, http.StatusServiceUnavailable, "")
	assert.False(t, NewSummarizer(NewOllamaClient(down.URL, ""), nil).Available(context.Background()))
}
