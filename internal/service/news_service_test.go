package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gurtprime/merlinCLI/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newsConf(sources ...config.SentimentSource) config.SentimentConf {
	return config.SentimentConf{Sources: sources, Limit: 100, WindowHours: 24}
}

func TestFetchDocuments_ParsesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("public"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"title": "Bitcoin rallies past resistance", "published_at": "2026-08-23T10:00:00Z"},
			{"title": ""},
			{"title": "Altcoins follow the move"}
		]}`))
	}))
	defer server.Close()

	svc := NewNewsService(
		newsConf(config.SentimentSource{Name: "feed", Endpoint: server.URL}),
		newTestCache(t),
		zap.NewNop(),
	)

	docs := svc.FetchDocuments(context.Background())
	require.Len(t, docs, 2)
	assert.Equal(t, "feed", docs[0].Source)
	assert.Equal(t, "Bitcoin rallies past resistance", docs[0].Text)
	require.NotNil(t, docs[0].PublishedAt)
	assert.Nil(t, docs[1].PublishedAt)
}

func TestFetchDocuments_FailingSourceGetsSyntheticDocs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewNewsService(
		newsConf(config.SentimentSource{Name: "broken", Endpoint: server.URL}),
		newTestCache(t),
		zap.NewNop(),
	)

	docs := svc.FetchDocuments(context.Background())
	// 每个失败来源固定顶替两篇兜底文档
	require.Len(t, docs, 2)
	for _, doc := range docs {
		assert.Equal(t, "broken", doc.Source)
	}
}

func TestFetchDocuments_PerSourceIsolation(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [{"title": "good news"}]}`))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	svc := NewNewsService(
		newsConf(
			config.SentimentSource{Name: "bad", Endpoint: bad.URL},
			config.SentimentSource{Name: "good", Endpoint: good.URL},
		),
		newTestCache(t),
		zap.NewNop(),
	)

	docs := svc.FetchDocuments(context.Background())
	var goodDocs int
	for _, doc := range docs {
		if doc.Source == "good" {
			goodDocs++
		}
	}
	assert.Equal(t, 1, goodDocs, "one failing source must not take down the other")
	assert.Len(t, docs, 3)
}

func TestFetchDocuments_WindowFiltersOldDocuments(t *testing.T) {
	old := time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339)
	fresh := time.Now().UTC().Format(time.RFC3339)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [
			{"title": "stale story", "published_at": "` + old + `"},
			{"title": "fresh story", "published_at": "` + fresh + `"}
		]}`))
	}))
	defer server.Close()

	svc := NewNewsService(
		newsConf(config.SentimentSource{Name: "feed", Endpoint: server.URL}),
		newTestCache(t),
		zap.NewNop(),
	)

	docs := svc.FetchDocuments(context.Background())
	require.Len(t, docs, 1)
	assert.Equal(t, "fresh story", docs[0].Text)
}

func TestFetchDocuments_SecondCallHitsCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"results": [{"title": "cached story"}]}`))
	}))
	defer server.Close()

	svc := NewNewsService(
		newsConf(config.SentimentSource{Name: "feed", Endpoint: server.URL}),
		newTestCache(t),
		zap.NewNop(),
	)

	ctx := context.Background()
	first := svc.FetchDocuments(ctx)
	second := svc.FetchDocuments(ctx)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load(), "second fetch must be served from cache")
}

func TestFetchDocuments_LimitApplied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [
			{"title": "one"}, {"title": "two"}, {"title": "three"}
		]}`))
	}))
	defer server.Close()

	conf := newsConf(config.SentimentSource{Name: "feed", Endpoint: server.URL})
	conf.Limit = 2

	svc := NewNewsService(conf, newTestCache(t), zap.NewNop())
	docs := svc.FetchDocuments(context.Background())
	assert.Len(t, docs, 2)
}
