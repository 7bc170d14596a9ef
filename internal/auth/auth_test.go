package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var student = Principal{ID: "2021A7PS0001P", Role: RoleStudent, Name: "Arjun Sharma", Email: "2021a7ps0001p@pilani.bits-pilani.ac.in", RoomNumber: "A-101"}

func testAccount(t *testing.T, p Principal, password string) Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return Account{Principal: p, PasswordHash: hash}
}

func TestIssueAndParse(t *testing.T) {
	tokens := NewTokens("secret", "hostel", time.Hour, nil)
	tok, err := tokens.Issue(student)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.ID)

	claims, err := tokens.Parse(context.Background(), tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, student, claims.Principal())
}

func TestParseRejectsForeignTokens(t *testing.T) {
	tokens := NewTokens("secret", "hostel", time.Hour, nil)
	other := NewTokens("other-secret", "hostel", time.Hour, nil)
	wrongIssuer := NewTokens("secret", "elsewhere", time.Hour, nil)

	tok, err := other.Issue(student)
	require.NoError(t, err)
	_, err = tokens.Parse(context.Background(), tok.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tok, err = wrongIssuer.Issue(student)
	require.NoError(t, err)
	_, err = tokens.Parse(context.Background(), tok.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Parse(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	tokens := NewTokens("secret", "hostel", time.Minute, nil)
	tok, err := tokens.Issue(student)
	require.NoError(t, err)

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tokens.Parse(context.Background(), tok.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevoke(t *testing.T) {
	tokens := NewTokens("secret", "hostel", time.Hour, nil)
	tok, err := tokens.Issue(student)
	require.NoError(t, err)
	claims, err := tokens.Parse(context.Background(), tok.AccessToken)
	require.NoError(t, err)

	require.NoError(t, tokens.Revoke(context.Background(), claims))
	_, err = tokens.Parse(context.Background(), tok.AccessToken)
	assert.ErrorIs(t, err, ErrRevokedToken)
}

func TestDirectoryAuthenticate(t *testing.T) {
	dir := NewDirectory(testAccount(t, student, "student123"))

	p, err := dir.Authenticate(context.Background(), "2021A7PS0001P@pilani.bits-pilani.ac.in", "student123")
	require.NoError(t, err)
	assert.Equal(t, student, p)

	_, err = dir.Authenticate(context.Background(), student.Email, "wrong")
	assert.Error(t, err)
	_, err = dir.Authenticate(context.Background(), "nobody@example.com", "student123")
	assert.Error(t, err)
}

func TestLoginDoesNotRevealAccountExistence(t *testing.T) {
	dir := NewDirectory(testAccount(t, student, "student123"))
	var causes []error
	a := NewAuthenticator(dir, NewTokens("secret", "hostel", time.Hour, nil))
	a.OnFailure = func(_ string, cause error) { causes = append(causes, cause) }

	_, errUnknown := a.Login(context.Background(), "nobody@example.com", "student123")
	_, errWrong := a.Login(context.Background(), student.Email, "wrong")

	assert.Equal(t, ErrInvalidCredentials, errUnknown)
	assert.Equal(t, ErrInvalidCredentials, errWrong)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
	require.Len(t, causes, 2)
	assert.NotEqual(t, causes[0], causes[1])
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Authenticate(ctx context.Context, email, password string) (Principal, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(Principal), args.Error(1)
}

func TestLoginMasksProviderOutage(t *testing.T) {
	g := new(mockGateway)
	g.On("Authenticate", mock.Anything, "a@b.c", "pw").Return(Principal{}, errors.New("connection refused"))

	_, err := NewAuthenticator(g, NewTokens("secret", "", time.Hour, nil)).Login(context.Background(), " A@B.c ", "pw")
	assert.Equal(t, ErrInvalidCredentials, err)
	g.AssertExpectations(t)
}

func TestLoginRejectsIncompletePrincipal(t *testing.T) {
	g := new(mockGateway)
	g.On("Authenticate", mock.Anything, "a@b.c", "pw").Return(Principal{ID: "x", Role: "guest"}, nil)

	_, err := NewAuthenticator(g, NewTokens("secret", "", time.Hour, nil)).Login(context.Background(), "a@b.c", "pw")
	assert.Equal(t, ErrInvalidCredentials, err)
}

func TestLoginIssuesToken(t *testing.T) {
	tokens := NewTokens("secret", "hostel", time.Hour, nil)
	a := NewAuthenticator(NewDirectory(testAccount(t, student, "student123")), tokens)

	sess, err := a.Login(context.Background(), student.Email, "student123")
	require.NoError(t, err)
	claims, err := tokens.Parse(context.Background(), sess.Token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, claims.Role)
}

func TestSupabaseAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"x","user":{"id":"uuid-1","email":"s@bits.ac.in",
			"user_metadata":{"name":"Arjun","room_number":"A-101","role":"admin"},
			"app_metadata":{"provider":"email","student_id":"2021A7PS0001P"}}}`))
	}))
	defer srv.Close()

	p, err := NewSupabase(srv.URL+"/", "anon-key").Authenticate(context.Background(), "s@bits.ac.in", "pw")
	require.NoError(t, err)
	assert.Equal(t, Principal{ID: "2021A7PS0001P", Role: RoleStudent, Name: "Arjun", Email: "s@bits.ac.in", RoomNumber: "A-101"}, p)
}

func TestSupabaseAdminFromAppMetadata(t *testing.T) {
	p := principalFromSupabase(supabaseUser{ID: "uuid-2", Email: "admin@bits.ac.in", AppMetadata: map[string]any{"role": "admin"}})
	assert.Equal(t, RoleAdmin, p.Role)
	assert.Equal(t, "uuid-2", p.ID)
}

func TestSupabaseIgnoresSelfAssignedStudentID(t *testing.T) {
	p := principalFromSupabase(supabaseUser{
		ID:           "uuid-3",
		Email:        "s3@bits.ac.in",
		UserMetadata: map[string]any{"student_id": "2021A7PS0001P"},
	})
	assert.Equal(t, RoleStudent, p.Role)
	assert.Equal(t, "uuid-3", p.ID)

	p = principalFromSupabase(supabaseUser{
		ID:           "uuid-3",
		Email:        "s3@bits.ac.in",
		UserMetadata: map[string]any{"student_id": "2021A7PS0001P"},
		AppMetadata:  map[string]any{"student_id": "2021A7PS0003P"},
	})
	assert.Equal(t, "2021A7PS0003P", p.ID)
}

func TestReadAccounts(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	accounts, err := ReadAccounts(strings.NewReader(`[{"id":"warden","role":"admin","name":"Office",
		"email":"Office@Hostel.test","passwordHash":"` + string(hash) + `"}]`))
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	dir := NewDirectory(accounts...)
	assert.Equal(t, 1, dir.Len())
	p, err := dir.Authenticate(context.Background(), "office@hostel.test", "pw")
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())

	_, err = ReadAccounts(strings.NewReader(`[{"id":"x","role":"admin","email":"a@b.c","passwordHash":"plaintext"}]`))
	assert.Error(t, err)
	_, err = ReadAccounts(strings.NewReader(`[{"id":"x","role":"root","email":"a@b.c","passwordHash":"` + string(hash) + `"}]`))
	assert.Error(t, err)
}

func TestSupabaseRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	_, err := NewSupabase(srv.URL, "k").Authenticate(context.Background(), "x@y.z", "pw")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := NewTokens("secret", "hostel", time.Hour, nil)
	r := gin.New()
	r.GET("/admin", Bearer(tokens), RequireRole(RoleAdmin), func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.String(http.StatusOK, p.ID)
	})

	do := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	studentTok, _ := tokens.Issue(student)
	adminTok, _ := tokens.Issue(Principal{ID: "warden", Role: RoleAdmin, Email: "admin@x"})

	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("Basic abc"))
	assert.Equal(t, http.StatusUnauthorized, do("Bearer garbage"))
	assert.Equal(t, http.StatusForbidden, do("Bearer "+studentTok.AccessToken))
	assert.Equal(t, http.StatusOK, do("bearer "+adminTok.AccessToken))
}

func TestMemoryRevokerExpires(t *testing.T) {
	m := NewMemoryRevoker()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Revoke(context.Background(), "a", now.Add(time.Minute)))
	require.NoError(t, m.Revoke(context.Background(), "b", now.Add(-time.Minute)))
	ok, _ := m.Revoked(context.Background(), "a")
	assert.True(t, ok)
	ok, _ = m.Revoked(context.Background(), "b")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = m.Revoked(context.Background(), "a")
	assert.False(t, ok)
}
