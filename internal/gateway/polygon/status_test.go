package polygon

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"quorum/internal/market"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name string
		res  *models.GetMarketStatusResponse
		want market.Status
	}{
		{"both open", &models.GetMarketStatusResponse{Exchanges: map[string]string{"nasdaq": "open", "nyse": "open"}}, market.StatusOpen},
		{"one open", &models.GetMarketStatusResponse{Exchanges: map[string]string{"nasdaq": "open", "nyse": "closed"}}, market.StatusClosed},
		{"early hours", &models.GetMarketStatusResponse{Exchanges: map[string]string{"nasdaq": "extended-hours", "nyse": "extended-hours"}, EarlyHours: true}, market.StatusEarlyHours},
		{"closed", &models.GetMarketStatusResponse{Exchanges: map[string]string{"nasdaq": "closed", "nyse": "closed"}}, market.StatusClosed},
		{"empty", nil, market.StatusClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusOf(tc.res))
		})
	}
}

func TestPoll(t *testing.T) {
	fail := false
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/v1/marketstatus/now", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"status":"ERROR","error":"bad key"}`)
			return
		}
		fmt.Fprint(w, `{"market":"open","earlyHours":false,"exchanges":{"nasdaq":"open","nyse":"open"}}`)
	}))
	defer srv.Close()

	o, err := NewStatusOracle(srv.URL, "k")
	require.NoError(t, err)

	st, err := o.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, market.StatusOpen, st)

	fail = true
	st, err = o.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, market.StatusError, st)
	assert.Equal(t, 2, calls, "no retries inside the client")
}

func TestNewStatusOracleRequiresKey(t *testing.T) {
	_, err := NewStatusOracle("", " ")
	require.Error(t, err)
}
