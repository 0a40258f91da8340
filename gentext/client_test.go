package gentext

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/describe", r.URL.Path)

		var req describeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Summer Deal", req.Product)
		assert.Equal(t, "hot deal", req.Hint)

		json.NewEncoder(w).Encode(describeResponse{Text: "A shiny limited offer"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	text, err := client.Describe(context.Background(), "Summer Deal", "hot deal")
	require.NoError(t, err)
	assert.Equal(t, "A shiny limited offer", text)
}

func TestDescribeNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Describe(context.Background(), "Summer Deal", "hot deal")
	assert.ErrorContains(t, err, "unexpected status")
}

func TestDescribeEmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(describeResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Describe(context.Background(), "Summer Deal", "hot deal")
	assert.ErrorContains(t, err, "empty description")
}

func TestDescribeUnconfigured(t *testing.T) {
	client := NewClient("")
	_, err := client.Describe(context.Background(), "Summer Deal", "hot deal")
	assert.Error(t, err)
}
