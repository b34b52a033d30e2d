package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsflow/smsflow/internal/dispatch/domain"
)

func TestTwilioCarrier_Name(t *testing.T) {
	carrier := NewTwilioCarrier(discardLogger(), "AC123", "token", "+15550009999", 1, nil)
	assert.Equal(t, "twilio", carrier.Name())
}

func TestTwilioCarrier_SendBatch_OrderAndIsolation(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "+15550009999", r.PostForm.Get("From"))
		assert.Equal(t, "Hello", r.PostForm.Get("Body"))

		to := r.PostForm.Get("To")
		if to == "+15550000002" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(twilioErrorResponse{Code: 21211, Message: "invalid 'To' phone number"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(twilioMessageResponse{SID: "SM-" + to, Status: "queued"})
	}))
	defer server.Close()

	carrier := NewTwilioCarrier(discardLogger(), "AC123", "token", "+15550009999", 1, server.Client())
	carrier.baseURL = server.URL

	destinations := []string{"+15550000001", "+15550000002", "+15550000003"}
	outcomes, err := carrier.SendBatch(context.Background(), destinations, "Hello")
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, int32(3), calls.Load())

	// Strict input-order echo.
	for i, dest := range destinations {
		assert.Equal(t, dest, outcomes[i].PhoneNumber)
	}

	assert.Equal(t, domain.StatusSent, outcomes[0].Status)
	assert.Equal(t, "SM-+15550000001", outcomes[0].ProviderMessageID)
	assert.Nil(t, outcomes[0].Cost) // twilio reports no cost at submission

	// The rejected middle destination must not drag its siblings down.
	assert.Equal(t, domain.StatusFailed, outcomes[1].Status)
	assert.Contains(t, outcomes[1].ErrorMessage, "invalid 'To' phone number")
	assert.Equal(t, domain.StatusSent, outcomes[2].Status)
}

func TestTwilioCarrier_SendBatch_BoundedFanOutKeepsOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(twilioMessageResponse{SID: "SM-" + r.PostForm.Get("To"), Status: "queued"})
	}))
	defer server.Close()

	carrier := NewTwilioCarrier(discardLogger(), "AC123", "token", "+15550009999", 4, server.Client())
	carrier.baseURL = server.URL

	destinations := make([]string, 20)
	for i := range destinations {
		destinations[i] = fmt.Sprintf("+1555000%04d", i)
	}

	outcomes, err := carrier.SendBatch(context.Background(), destinations, "Hello")
	require.NoError(t, err)
	require.Len(t, outcomes, len(destinations))
	for i, dest := range destinations {
		assert.Equal(t, dest, outcomes[i].PhoneNumber, "outcome %d out of order", i)
		assert.Equal(t, domain.StatusSent, outcomes[i].Status)
		assert.Equal(t, "SM-"+dest, outcomes[i].ProviderMessageID)
	}
}

func TestTwilioCarrier_SendBatch_AcceptedWithoutParsableBodyIsFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, "<html>gateway glitch</html>")
	}))
	defer server.Close()

	carrier := NewTwilioCarrier(discardLogger(), "AC123", "token", "+15550009999", 1, server.Client())
	carrier.baseURL = server.URL

	outcomes, err := carrier.SendBatch(context.Background(), []string{"+15550000001"}, "Hello")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	// Without a carrier sid there is nothing to mark sent.
	assert.Equal(t, domain.StatusFailed, outcomes[0].Status)
	assert.Empty(t, outcomes[0].ProviderMessageID)
	assert.Contains(t, outcomes[0].ErrorMessage, "malformed response")
}

func TestTwilioCarrier_SendBatch_AcceptedWithoutSIDIsFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(twilioMessageResponse{Status: "queued"})
	}))
	defer server.Close()

	carrier := NewTwilioCarrier(discardLogger(), "AC123", "token", "+15550009999", 1, server.Client())
	carrier.baseURL = server.URL

	outcomes, err := carrier.SendBatch(context.Background(), []string{"+15550000001"}, "Hello")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.StatusFailed, outcomes[0].Status)
	assert.Contains(t, outcomes[0].ErrorMessage, "missing message sid")
}

func TestTwilioCarrier_SendBatch_TransportFailureIsPerDestination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	carrier := NewTwilioCarrier(discardLogger(), "AC123", "token", "+15550009999", 1, nil)
	carrier.baseURL = server.URL

	outcomes, err := carrier.SendBatch(context.Background(), []string{"+15550000001"}, "Hello")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.StatusFailed, outcomes[0].Status)
	assert.Contains(t, outcomes[0].ErrorMessage, "twilio request failed")
}
