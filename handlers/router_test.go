package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/handlers"
	"github.com/kevinaaaquil/circulation/identity"
	"github.com/kevinaaaquil/circulation/service"
	"github.com/kevinaaaquil/circulation/sqlstore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (a *memArchive) PutReport(_ context.Context, key string, body []byte, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[key] = body
	return nil
}

func (a *memArchive) PresignedURL(_ context.Context, key string, _ time.Duration, _ string) (string, error) {
	return "https://reports.example.org/" + key, nil
}

type memMailer struct {
	to []string
}

func (m *memMailer) SendNotice(_ context.Context, n circulation.OverdueNotice) error {
	if n.Borrower.Email == "bounce@example.org" {
		return errors.New("mailbox unavailable")
	}
	m.to = append(m.to, n.Borrower.Email)
	return nil
}

type server struct {
	t       *testing.T
	handler http.Handler
	now     time.Time
	archive *memArchive
	mailer  *memMailer
}

func newServer(t *testing.T, withReports bool) *server {
	t.Helper()
	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, sqlstore.SQLiteDSN(filepath.Join(t.TempDir(), "h.db")))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))

	s := &server{t: t, now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	engine := circulation.NewEngine(store,
		circulation.WithClock(func() time.Time { return s.now }),
		circulation.WithPasswordCost(bcrypt.MinCost))
	_, err = engine.EnsureBootstrapAdmin(ctx, "root@example.org", "rootpw", "")
	require.NoError(t, err)

	deps := handlers.Deps{
		Engine: engine,
		Oracle: identity.NewJWTOracle("test-secret", store),
		Retry:  []handlers.RetryOption{handlers.WithBaseDelay(time.Millisecond)},
	}
	if withReports {
		s.archive = &memArchive{objects: map[string][]byte{}}
		s.mailer = &memMailer{}
		deps.Reports = &service.Reports{Engine: engine, Archive: s.archive, Mailer: s.mailer, URLTTL: time.Minute}
	}
	s.handler = handlers.NewRouter(deps)
	return s
}

// do sends body as JSON and decodes the response into out when out is non-nil.
func (s *server) do(method, path, token string, body, out interface{}) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (s *server) login(email, password string) string {
	s.t.Helper()
	var res struct {
		Token string `json:"token"`
	}
	require.Equal(s.t, http.StatusOK, s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": password,
	}, &res))
	return res.Token
}

type idResponse struct {
	ID string `json:"id"`
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	ID    string `json:"id"`
}

func (s *server) register(admin, email, role string) string {
	s.t.Helper()
	var u idResponse
	require.Equal(s.t, http.StatusCreated, s.do(http.MethodPost, "/api/users", admin, map[string]string{
		"email": email, "password": "pw", "role": role, "branchId": "north",
	}, &u))
	return u.ID
}

func TestHealth(t *testing.T) {
	s := newServer(t, false)
	var body map[string]string
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestLoginAndAuth(t *testing.T) {
	s := newServer(t, false)

	var e errorBody
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "root@example.org", "password": "nope",
	}, &e))
	assert.Equal(t, "forbidden", e.Kind)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/auth/login", "", map[string]string{}, nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/loans", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/loans", "forged", nil, nil))

	admin := s.login("root@example.org", "rootpw")
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/loans", admin, nil, nil))
}

func TestCirculationOverHTTP(t *testing.T) {
	s := newServer(t, false)
	admin := s.login("root@example.org", "rootpw")
	ada := s.register(admin, "ada@example.org", "student")
	bob := s.register(admin, "bob@example.org", "community")

	var book idResponse
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/books", admin, map[string]interface{}{
		"title": "Dune", "totalCopies": 1, "branchId": "north",
	}, &book))

	var loan struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Fine   decimal.Decimal `json:"fine"`
	}
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/loans", admin, map[string]string{
		"bookId": book.ID, "borrowerId": ada,
	}, &loan))
	assert.Equal(t, "active", loan.Status)

	var e errorBody
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/loans", admin, map[string]string{
		"bookId": book.ID, "borrowerId": bob,
	}, &e))
	assert.Equal(t, "unavailable", e.Kind)
	assert.Equal(t, book.ID, e.ID)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/loans", admin, map[string]string{
		"bookId": "missing", "borrowerId": bob,
	}, &e))
	assert.Equal(t, "not_found", e.Kind)

	adaToken := s.login("ada@example.org", "pw")
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/loans/"+loan.ID+"/return", adaToken, nil, nil))
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/loans/overdue", adaToken, nil, nil))

	var mine []map[string]interface{}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/loans/mine", adaToken, nil, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, false, mine[0]["overdue"])

	s.now = s.now.Add(16 * 24 * time.Hour)
	var overdue []struct {
		ID          string `json:"id"`
		DaysOverdue int    `json:"daysOverdue"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/loans/overdue", admin, nil, &overdue))
	require.Len(t, overdue, 1)
	assert.Equal(t, 2, overdue[0].DaysOverdue)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/loans/"+loan.ID+"/return", admin, nil, &loan))
	assert.Equal(t, "returned", loan.Status)
	assert.True(t, loan.Fine.Equal(decimal.NewFromInt(2)), loan.Fine.String())
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/loans/"+loan.ID+"/return", admin, nil, &e))
	assert.Equal(t, "conflict", e.Kind)

	var eligible []struct {
		LoanID string `json:"loanId"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/reviews/eligible", adaToken, nil, &eligible))
	require.Len(t, eligible, 1)
	assert.Equal(t, loan.ID, eligible[0].LoanID)

	var review struct {
		ID         string `json:"id"`
		Rating     int    `json:"rating"`
		IsApproved bool   `json:"isApproved"`
	}
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/reviews", adaToken, map[string]interface{}{
		"bookId": book.ID, "rating": 9, "comment": "great",
	}, &review))
	assert.Equal(t, 5, review.Rating)
	assert.False(t, review.IsApproved)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/reviews", adaToken, map[string]interface{}{
		"bookId": book.ID, "rating": 3,
	}, nil))
	bobToken := s.login("bob@example.org", "pw")
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/reviews", bobToken, map[string]interface{}{
		"bookId": book.ID, "rating": 3,
	}, &e))
	assert.Equal(t, circulation.ErrNoCompletedLoan.Error(), e.Error)

	var pending []idResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/reviews/pending", admin, nil, &pending))
	require.Len(t, pending, 1)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/reviews/"+review.ID+"/moderate", admin, map[string]bool{"approve": true}, nil))

	var published struct {
		Count         int     `json:"count"`
		AverageRating float64 `json:"averageRating"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/books/"+book.ID+"/reviews", "", nil, &published))
	assert.Equal(t, 1, published.Count)
	assert.Equal(t, 5.0, published.AverageRating)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/books/"+book.ID, admin, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/books/"+book.ID, admin, nil, nil))
}

func TestUsersOverHTTP(t *testing.T) {
	s := newServer(t, false)
	admin := s.login("root@example.org", "rootpw")
	lib := s.register(admin, "lib@example.org", "librarian")
	libToken := s.login("lib@example.org", "pw")

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/users", libToken, map[string]string{
		"email": "boss@example.org", "password": "pw", "role": "admin",
	}, nil))
	reader := s.register(libToken, "reader@example.org", "student")

	var e errorBody
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/users", libToken, map[string]string{
		"email": "reader@example.org", "password": "pw",
	}, &e))
	assert.Equal(t, "conflict", e.Kind)

	var users []idResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/users", libToken, nil, &users))
	assert.Len(t, users, 2, "librarian sees own branch only")

	var updated struct {
		Role string `json:"role"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodPatch, "/api/users/"+reader+"/role", admin, map[string]string{"role": "community"}, &updated))
	assert.Equal(t, "community", updated.Role)

	var toggled struct {
		IsActive bool `json:"isActive"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/users/"+lib+"/toggle", admin, nil, &toggled))
	assert.False(t, toggled.IsActive)

	// the deactivated librarian's token still parses but grants nothing
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/users", libToken, nil, nil))
}

func TestReportsOverHTTP(t *testing.T) {
	bare := newServer(t, false)
	adminBare := bare.login("root@example.org", "rootpw")
	var e errorBody
	assert.Equal(t, http.StatusServiceUnavailable, bare.do(http.MethodPost, "/api/loans/overdue/export", adminBare, nil, &e))
	assert.Equal(t, "not_configured", e.Kind)

	s := newServer(t, true)
	admin := s.login("root@example.org", "rootpw")
	ada := s.register(admin, "ada@example.org", "student")
	bounce := s.register(admin, "bounce@example.org", "student")
	var book idResponse
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/books", admin, map[string]interface{}{
		"title": "Emma", "totalCopies": 2,
	}, &book))
	for _, who := range []string{ada, bounce} {
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/loans", admin, map[string]string{
			"bookId": book.ID, "borrowerId": who,
		}, nil))
	}
	s.now = s.now.Add(20 * 24 * time.Hour)

	var export service.ExportResult
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/loans/overdue/export", admin, nil, &export))
	assert.Equal(t, 2, export.Rows)
	assert.Contains(t, export.URL, export.Key)
	assert.Contains(t, string(s.archive.objects[export.Key]), "loan_id,book_id")

	var notices service.NoticeResult
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/loans/overdue/notices", admin, nil, &notices))
	require.Len(t, notices.Sent, 1)
	assert.Equal(t, "ada@example.org", notices.Sent[0].ToEmail)
	require.Len(t, notices.Failed, 1)
	assert.Equal(t, []string{"ada@example.org"}, s.mailer.to)
}
