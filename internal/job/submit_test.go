package job

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/btg-sync/internal/btg"
	"github.com/sells-group/btg-sync/internal/resilience"
	"github.com/sells-group/btg-sync/internal/route"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *btg.Client {
	t.Helper()
	mux.HandleFunc("/connect/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "tok", "expires_in": 3600}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tokens := btg.NewTokenProvider("gestora", btg.Credentials{
		ClientID:     "id",
		ClientSecret: "secret",
		AuthURL:      srv.URL + "/connect/token",
	}, srv.URL)
	return btg.NewClient(srv.URL, tokens,
		btg.WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
	)
}

func testRoute() route.Route {
	return route.Route{
		Name:         "gestora_renda_fixa",
		Category:     "gestora",
		Endpoint:     "renda_fixa",
		SubmitPath:   "/reports/FixedIncome",
		SubmitMethod: "POST",
		SubmitAuth:   route.AuthSecureToken,
		SubmitBody: map[string]any{
			"contract": map[string]any{"date": "{{date_iso}}"},
		},
		PollPath:     "/reports/Ticket",
		PollAuth:     route.AuthSecureToken,
		DownloadAuth: route.AuthSecureToken,
	}
}

func TestSubmit_TicketShapes(t *testing.T) {
	responses := []string{
		`{"ticketId": "T1"}`,
		`{"result": {"ticketId": "T1"}}`,
		`{"ticket": {"id": "T1"}}`,
		`{"id": "T1"}`,
		`{"ticket": "T1"}`,
	}
	for _, body := range responses {
		t.Run(body, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/reports/FixedIncome", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, body)
			})
			client := newTestClient(t, mux)

			ticket, err := Submit(context.Background(), client, testRoute(), map[string]any{"date_iso": "2024-03-01"})
			require.NoError(t, err)
			assert.Equal(t, "T1", ticket)
		})
	}
}

func TestSubmit_PriorityOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reports/FixedIncome", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ticketId": "direct", "id": "fallback"}`)
	})
	client := newTestClient(t, mux)

	ticket, err := Submit(context.Background(), client, testRoute(), nil)
	require.NoError(t, err)
	assert.Equal(t, "direct", ticket)
}

func TestSubmit_NumericTicketStringified(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reports/FixedIncome", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ticketId": 42}`)
	})
	client := newTestClient(t, mux)

	ticket, err := Submit(context.Background(), client, testRoute(), nil)
	require.NoError(t, err)
	assert.Equal(t, "42", ticket)
}

func TestSubmit_ContainerValueSkipped(t *testing.T) {
	// "ticket" holds an envelope without an id; nothing usable remains.
	mux := http.NewServeMux()
	mux.HandleFunc("/reports/FixedIncome", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ticket": {"number": 5}}`)
	})
	client := newTestClient(t, mux)

	_, err := Submit(context.Background(), client, testRoute(), nil)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "gestora_renda_fixa", subErr.Route)
}

func TestSubmit_NoTicket(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reports/FixedIncome", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status": "rejected"}`)
	})
	client := newTestClient(t, mux)

	_, err := Submit(context.Background(), client, testRoute(), nil)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
}

func TestSubmit_ExpandsBodyAndSendsAuth(t *testing.T) {
	var gotBody map[string]any
	var gotToken string
	mux := http.NewServeMux()
	mux.HandleFunc("/reports/FixedIncome", func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-SecureConnect-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ticketId": "T1"}`)
	})
	client := newTestClient(t, mux)

	_, err := Submit(context.Background(), client, testRoute(), map[string]any{"date_iso": "2024-03-01"})
	require.NoError(t, err)

	assert.Equal(t, "tok", gotToken)
	contract := gotBody["contract"].(map[string]any)
	assert.Equal(t, "2024-03-01", contract["date"])
}

func TestSubmit_GETSendsQueryParams(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/reports/Custom", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ticketId": "T1"}`)
	})
	client := newTestClient(t, mux)

	r := testRoute()
	r.SubmitPath = "/reports/Custom"
	r.SubmitMethod = "GET"
	r.SubmitBody = nil
	r.SubmitParams = map[string]any{"date": "{{date_iso}}"}

	_, err := Submit(context.Background(), client, r, map[string]any{"date_iso": "2024-03-01"})
	require.NoError(t, err)
	assert.Equal(t, "date=2024-03-01", gotQuery)
}

func TestSubmit_HTTPErrorPropagates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reports/FixedIncome", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad contract", http.StatusBadRequest)
	})
	client := newTestClient(t, mux)

	_, err := Submit(context.Background(), client, testRoute(), nil)
	var apiErr *btg.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}
