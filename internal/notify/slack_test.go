package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gofresh/internal/config"
)

func TestSend_SuccessPayload(t *testing.T) {
	var received slackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := New(config.NotifyConfig{
		SlackWebhookURL: server.URL,
		Channel:         "#deploys",
		Username:        "gofresh",
	})

	err := n.Send(context.Background(), Event{
		Database:  "appdb",
		Vendor:    "postgres",
		Tables:    12,
		Waves:     3,
		Duration:  8 * time.Second,
		Predicted: 10 * time.Second,
		Risk:      "Medium",
		Success:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, "#deploys", received.Channel)
	assert.Equal(t, "gofresh", received.Username)
	assert.Contains(t, received.Text, "appdb")
	require.Len(t, received.Attachments, 1)
	assert.Equal(t, "good", received.Attachments[0].Color)

	titles := map[string]string{}
	for _, f := range received.Attachments[0].Fields {
		titles[f.Title] = f.Value
	}
	assert.Equal(t, "12 in 3 waves", titles["Tables"])
	assert.Equal(t, "10s", titles["Predicted"])
}

func TestSend_FailurePayload(t *testing.T) {
	var received slackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := New(config.NotifyConfig{SlackWebhookURL: server.URL})

	err := n.Send(context.Background(), Event{
		Database: "appdb",
		Vendor:   "mysql",
		Success:  false,
		Err:      errors.New("teardown aborted"),
	})
	require.NoError(t, err)

	require.Len(t, received.Attachments, 1)
	assert.Equal(t, "danger", received.Attachments[0].Color)

	var errField string
	for _, f := range received.Attachments[0].Fields {
		if f.Title == "Error" {
			errField = f.Value
		}
	}
	assert.Equal(t, "teardown aborted", errField)
}

func TestSend_RejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	n := New(config.NotifyConfig{SlackWebhookURL: server.URL})
	err := n.Send(context.Background(), Event{Database: "appdb", Success: true})
	assert.Error(t, err)
}

func TestSend_DisabledIsNoOp(t *testing.T) {
	n := New(config.NotifyConfig{})
	assert.False(t, n.IsEnabled())
	assert.NoError(t, n.Send(context.Background(), Event{Database: "appdb"}))
}
