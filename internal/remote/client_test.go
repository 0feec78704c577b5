package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events/event-1/credentials", r.URL.Path)
		assert.Equal(t, "device-key-1", r.Header.Get("X-Device-Key"))
		json.NewEncoder(w).Encode(map[string]any{
			"credentials": []map[string]any{
				{
					"token":              "tok-1",
					"personName":         "Alice Kim",
					"koreanName":         "김앨리스",
					"confirmationCode":   "R26KIM0001",
					"isActive":           true,
					"registrationStatus": "PAID",
				},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, WithAPIKey("device-key-1"))
	creds, err := c.FetchCredentials(context.Background(), "event-1")
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "tok-1", creds[0].Token)
	assert.Equal(t, "김앨리스", creds[0].KoreanName)
	assert.True(t, creds[0].IsActive)
	assert.Equal(t, "PAID", creds[0].RegistrationStatus)
}

func TestVerify_Admit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req VerifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tok-1", req.Token)
		assert.Equal(t, "MAIN", req.CheckinType)

		json.NewEncoder(w).Encode(VerifyResponse{
			Result:           VerifyCheckedIn,
			PersonName:       "Alice Kim",
			ConfirmationCode: "R26KIM0001",
			CheckinType:      "MAIN",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Verify(context.Background(), VerifyRequest{Token: "tok-1", CheckinType: "MAIN"})
	require.NoError(t, err)
	assert.Equal(t, VerifyCheckedIn, resp.Result)
	assert.Equal(t, "Alice Kim", resp.PersonName)
}

func TestVerify_Non2xxIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Verify(context.Background(), VerifyRequest{Token: "tok", CheckinType: "MAIN"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestVerify_TransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Connection refused from here on.

	c := New(srv.URL)
	_, err := c.Verify(context.Background(), VerifyRequest{Token: "tok", CheckinType: "MAIN"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSyncBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/checkin/sync", r.URL.Path)
		var req struct {
			Checkins []BatchItem `json:"checkins"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Checkins, 2)
		assert.Equal(t, "n-1", req.Checkins[0].Nonce)

		json.NewEncoder(w).Encode(map[string]any{
			"results": []BatchResult{
				{Nonce: "n-1", Outcome: SyncSuccess},
				{Nonce: "n-2", Outcome: SyncError, Message: "registration cancelled"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	results, err := c.SyncBatch(context.Background(), []BatchItem{
		{Token: "t-1", CheckinType: "MAIN", Nonce: "n-1", Timestamp: "2026-08-28T09:00:00Z"},
		{Token: "t-2", CheckinType: "MAIN", Nonce: "n-2", Timestamp: "2026-08-28T09:01:00Z"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, SyncSuccess, results[0].Outcome)
	assert.Equal(t, SyncError, results[1].Outcome)
}

func TestPing(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	require.NoError(t, New(up.URL).Ping(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	down.Close()
	assert.ErrorIs(t, New(down.URL).Ping(context.Background()), ErrUnavailable)
}
