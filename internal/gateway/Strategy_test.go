package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// driftServer rejects queries containing rejectMarker at the GraphQL level
// and answers everything else with dataBody.
func driftServer(t *testing.T, rejectMarker string, dataBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(req.Query, rejectMarker) {
			w.Write([]byte(`{"errors":[{"message":"Type Query has no field ` + rejectMarker + `"}]}`))
			return
		}
		w.Write([]byte(dataBody))
	}))
}

func TestStrategyPrimarySucceeds(t *testing.T) {
	server := driftServer(t, "neverRejected", `{"data":{"items":[{"id":"a"}]}}`)
	defer server.Close()

	client, err := NewClient(server.URL, "", server.Client())
	require.NoError(t, err)

	var primary struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	strategy := Strategy{
		Name:    "test",
		Primary: Attempt{Spec: QuerySpec{Document: `query{ items { id } }`}, Out: &primary},
		Fallback: &Attempt{
			Spec: QuerySpec{Document: `query{ legacyItems { id } }`},
			Out:  &struct{}{},
		},
	}

	usedFallback, err := strategy.Run(context.Background(), client)
	require.NoError(t, err)
	assert.False(t, usedFallback)
	assert.Len(t, primary.Items, 1)
}

func TestStrategyFallsBackOnSchemaRejection(t *testing.T) {
	server := driftServer(t, "newShape", `{"data":{"legacyItems":[{"id":"a"},{"id":"b"}]}}`)
	defer server.Close()

	client, err := NewClient(server.URL, "", server.Client())
	require.NoError(t, err)

	var fallback struct {
		LegacyItems []struct {
			ID string `json:"id"`
		} `json:"legacyItems"`
	}
	strategy := Strategy{
		Name:    "test",
		Primary: Attempt{Spec: QuerySpec{Document: `query{ newShape { id } }`}, Out: &struct{}{}},
		Fallback: &Attempt{
			Spec: QuerySpec{Document: `query{ legacyItems { id } }`},
			Out:  &fallback,
		},
	}

	usedFallback, err := strategy.Run(context.Background(), client)
	require.NoError(t, err)
	assert.True(t, usedFallback)
	assert.Len(t, fallback.LegacyItems, 2)
}

func TestStrategyDoesNotFallBackOnTransportFailure(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "", server.Client())
	require.NoError(t, err)

	strategy := Strategy{
		Name:     "test",
		Primary:  Attempt{Spec: QuerySpec{Document: `query{ a }`}, Out: &struct{}{}},
		Fallback: &Attempt{Spec: QuerySpec{Document: `query{ b }`}, Out: &struct{}{}},
	}

	_, err = strategy.Run(context.Background(), client)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Equal(t, 1, hits, "a transport failure must not trigger the fallback query")
}

func TestStrategyBothAttemptsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"nothing here works"}]}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "", server.Client())
	require.NoError(t, err)

	strategy := Strategy{
		Name:     "test",
		Primary:  Attempt{Spec: QuerySpec{Document: `query{ a }`}, Out: &struct{}{}},
		Fallback: &Attempt{Spec: QuerySpec{Document: `query{ b }`}, Out: &struct{}{}},
	}

	usedFallback, err := strategy.Run(context.Background(), client)
	require.Error(t, err)
	assert.False(t, usedFallback)
	assert.ErrorIs(t, err, ErrAllAttemptsFailed)
	assert.ErrorIs(t, err, ErrGatewayQueryRejected)
}

func TestStrategyWithoutFallbackPropagatesRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"no field"}]}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "", server.Client())
	require.NoError(t, err)

	strategy := Strategy{
		Name:    "test",
		Primary: Attempt{Spec: QuerySpec{Document: `query{ a }`}, Out: &struct{}{}},
	}

	_, err = strategy.Run(context.Background(), client)
	assert.ErrorIs(t, err, ErrGatewayQueryRejected)
}
