package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unibank/internal/metrics"
	"unibank/internal/models"
	"unibank/internal/status"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, router http.Handler, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", staticToken(token), WithHTTPClient(srv.Client()))
}

func TestLoginPostsFormWithoutBearer(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/auth/token", func(w http.ResponseWriter, req *http.Request) {
		assert.Empty(t, req.Header.Get("Authorization"))
		assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
		require.NoError(t, req.ParseForm())
		assert.Equal(t, "a@x.com", req.PostForm.Get("username"))
		assert.Equal(t, "p1", req.PostForm.Get("password"))
		_, _ = io.WriteString(w, `{"access_token":"tok-1","token_type":"bearer"}`)
	})

	c := newTestClient(t, r, "stale-token")
	tok, err := c.Login(context.Background(), "a@x.com", "p1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)
}

func TestLoginRejectedIsAuthError(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/auth/token", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Incorrect username or password"}`)
	})

	c := newTestClient(t, r, "")
	_, err := c.Login(context.Background(), "a@x.com", "wrong")

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Incorrect username or password", authErr.Reason())
	assert.False(t, IsUnauthorized(err), "login rejection is not a session failure")
}

func TestLoginWithEmptyTokenFails(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/auth/token", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"token_type":"bearer"}`)
	})

	c := newTestClient(t, r, "")
	_, err := c.Login(context.Background(), "a@x.com", "p1")
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestRegisterSendsJSONWithoutBearer(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/auth/register", func(w http.ResponseWriter, req *http.Request) {
		assert.Empty(t, req.Header.Get("Authorization"))
		var body models.RegisterRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "user", body.Role)
		_, _ = io.WriteString(w, `{"id":1,"email":"a@x.com","full_name":"Ann","role":"user","is_active":true}`)
	})

	c := newTestClient(t, r, "tok")
	user, err := c.Register(context.Background(), models.RegisterRequest{Email: "a@x.com", FullName: "Ann", Password: "p1", Role: "user"})
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)
}

func TestAuthenticatedCallsCarryBearer(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/accounts", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "Bearer tok-9", req.Header.Get("Authorization"))
		assert.NotEmpty(t, req.Header.Get("X-Request-ID"))
		_, _ = io.WriteString(w, `[{"id":1,"account_number":"1111-2222-3333-4444","balance":100.0}]`)
	})

	c := newTestClient(t, r, "tok-9")
	accounts, err := c.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "100.00", accounts[0].Balance.StringFixed(2))
}

func TestNoBearerWhenSignedOut(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/accounts", func(w http.ResponseWriter, req *http.Request) {
		assert.Empty(t, req.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `null`)
	})

	c := newTestClient(t, r, "")
	accounts, err := c.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, accounts)
	assert.Empty(t, accounts)
}

func TestTransferPutsSenderInQuery(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/transactions", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "3", req.URL.Query().Get("sender_account_id"))
		raw, _ := io.ReadAll(req.Body)
		assert.JSONEq(t, `{"amount":40,"receiver_account_id":4}`, string(raw))
		_, _ = io.WriteString(w, `{"id":10,"sender_account_id":3,"receiver_account_id":4,"amount":40.0,"status":"completed","created_at":"2024-05-01T10:00:00"}`)
	})

	c := newTestClient(t, r, "tok")
	tx, err := c.Transfer(context.Background(), " 3 ", models.TransferRequest{
		Amount:            models.ParseAmount("40.00"),
		ReceiverAccountID: models.ParseID("4"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, tx.Status)
	assert.Equal(t, models.KindTransfer, tx.Kind())
}

func TestListTransactionsUsesAccountPath(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/transactions/{accountID}", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "12", chi.URLParam(req, "accountID"))
		_, _ = io.WriteString(w, `[{"id":1,"receiver_account_id":12,"amount":"5.00","status":"completed"}]`)
	})

	c := newTestClient(t, r, "tok")
	txs, err := c.ListTransactions(context.Background(), 12)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.KindDeposit, txs[0].Kind())
}

func TestRejectedCallIsRequestError(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/transactions/withdraw", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"detail":"Invalid withdrawal amount"}`)
	})
	r.Get("/access-logs", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Could not validate credentials"}`)
	})

	c := newTestClient(t, r, "tok")
	_, err := c.Withdraw(context.Background(), models.WithdrawRequest{Amount: models.ParseAmount("-5"), SenderAccountID: models.ParseID("1")})
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	assert.Equal(t, "Invalid withdrawal amount", status.Reason(err))
	assert.False(t, IsUnauthorized(err))

	_, err = c.ListAccessLogs(context.Background())
	assert.True(t, IsUnauthorized(err))
}

func TestUnreachableLedgerIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, staticToken("tok"))
	_, err := c.ListAccessLogs(context.Background())

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, networkFailure, status.Reason(err))
}

func TestCancelledContextIsNetworkError(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/accounts", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	c := newTestClient(t, r, "tok")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListAccounts(ctx)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, errors.Is(err, context.Canceled))
}

// ledgerCalls scrapes the gateway call counter for one endpoint and outcome.
func ledgerCalls(t *testing.T, endpoint, outcome string) float64 {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	series := `unibank_gateway_calls_total{endpoint="` + endpoint + `",method="GET",outcome="` + outcome + `"}`
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		if value, ok := strings.CutPrefix(sc.Text(), series+" "); ok {
			v, err := strconv.ParseFloat(value, 64)
			require.NoError(t, err)
			return v
		}
	}
	return 0
}

func TestUndecodableBodyIsNotCountedOK(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/accounts", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"not":"a list"`)
	})
	c := newTestClient(t, r, "tok")
	okBefore := ledgerCalls(t, "accounts.list", "ok")
	failedBefore := ledgerCalls(t, "accounts.list", "decode_error")

	_, err := c.ListAccounts(context.Background())

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, okBefore, ledgerCalls(t, "accounts.list", "ok"))
	assert.Equal(t, failedBefore+1, ledgerCalls(t, "accounts.list", "decode_error"))
}

func TestTimeoutAppliesInAnyOptionOrder(t *testing.T) {
	supplied := &http.Client{}

	before := NewClient("http://ledger", nil, WithTimeout(3*time.Second), WithHTTPClient(supplied))
	after := NewClient("http://ledger", nil, WithHTTPClient(supplied), WithTimeout(3*time.Second))

	assert.Equal(t, 3*time.Second, before.httpClient.Timeout)
	assert.Equal(t, 3*time.Second, after.httpClient.Timeout)
	assert.Zero(t, supplied.Timeout)
}

func TestNilHTTPClientFallsBackToDefault(t *testing.T) {
	var c *Client
	require.NotPanics(t, func() {
		c = NewClient("http://ledger", nil, WithHTTPClient(nil), WithTimeout(time.Second))
	})
	require.NotNil(t, c.httpClient)
	assert.Equal(t, time.Second, c.httpClient.Timeout)
	assert.NotNil(t, c.httpClient.Transport)
}

func TestExtractReason(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "detail string", body: `{"detail":"Insufficient funds"}`, want: "Insufficient funds"},
		{name: "validation list", body: `{"detail":[{"loc":["body","amount"],"msg":"Input should be a valid number","type":"float_parsing"}]}`, want: "amount: Input should be a valid number"},
		{name: "error and details", body: `{"error":"Invalid token","details":"Malformed token"}`, want: "Invalid token: Malformed token"},
		{name: "message", body: `{"message":"Not Found"}`, want: "Not Found"},
		{name: "empty detail", body: `{"detail":""}`, want: genericFailure},
		{name: "not json", body: `<html>bad gateway</html>`, want: genericFailure},
		{name: "empty", body: ``, want: genericFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractReason([]byte(tt.body)))
		})
	}
}
