package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memAccounts struct {
	accounts map[string]*Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[string]*Account)}
}

func (m *memAccounts) GetByID(ctx context.Context, id string) (*Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) Create(ctx context.Context, a *Account) error {
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *memAccounts) Delete(ctx context.Context, id string) (int64, error) {
	if _, ok := m.accounts[id]; !ok {
		return 0, nil
	}
	delete(m.accounts, id)
	return 1, nil
}

func testService(t *testing.T) (*Service, *memAccounts) {
	t.Helper()
	store := newMemAccounts()
	return &Service{store: store, secret: []byte("test-secret")}, store
}

func seedAccount(t *testing.T, store *memAccounts, id, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	store.accounts[id] = &Account{
		ID:           id,
		PasswordHash: string(hash),
		DisplayName:  "Test User",
		Role:         "staff",
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, store := testService(t)
	seedAccount(t, store, "staff-1", "hunter2")

	t.Run("issues a token for valid credentials", func(t *testing.T) {
		token, err := svc.Login(ctx, "staff-1", "hunter2")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) {
			return []byte("test-secret"), nil
		})
		require.NoError(t, err)
		claims := parsed.Claims.(jwt.MapClaims)
		require.Equal(t, "staff-1", claims["sub"])
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "staff-1", "wrong")
		require.Error(t, err)
	})

	t.Run("rejects an unknown user", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody", "hunter2")
		require.Error(t, err)
	})

	t.Run("rejects a disabled account", func(t *testing.T) {
		store.accounts["staff-1"].IsDisabled = true
		defer func() { store.accounts["staff-1"].IsDisabled = false }()

		_, err := svc.Login(ctx, "staff-1", "hunter2")
		require.Error(t, err)
	})
}

func TestRegisterAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)

	require.NoError(t, svc.Register(ctx, "staff-2", "pw", "Second"))
	require.ErrorIs(t, svc.Register(ctx, "staff-2", "pw", "Second"), ErrAlreadyExists)

	require.NoError(t, svc.Delete(ctx, "staff-2"))
	require.ErrorIs(t, svc.Delete(ctx, "staff-2"), ErrNotFound)
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("test-secret")

	router := gin.New()
	router.GET("/protected", RequireAuth(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"caller": CallerID(c)})
	})

	get := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	svc, store := testService(t)
	seedAccount(t, store, "staff-1", "hunter2")
	token, err := svc.Login(context.Background(), "staff-1", "hunter2")
	require.NoError(t, err)

	t.Run("accepts a valid bearer token", func(t *testing.T) {
		w := get("Bearer " + token)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), "staff-1")
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, get("").Code)
	})

	t.Run("rejects a malformed header", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, get("Token abc").Code)
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"})
		bad, err := other.SignedString([]byte("other-secret"))
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, get("Bearer "+bad).Code)
	})

	t.Run("rejects an unsigned token", func(t *testing.T) {
		none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x"})
		bad, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, get("Bearer "+bad).Code)
	})
}

// Account deletion is destructive and must never be reachable without a token.
func TestAccountDeletionRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("test-secret")

	svc, store := testService(t)
	seedAccount(t, store, "staff-1", "hunter2")
	seedAccount(t, store, "victim", "pw")

	router := gin.New()
	api := router.Group("/api/v1")
	RegisterRoutes(api, svc)
	protected := router.Group("/api/v1")
	protected.Use(RequireAuth(secret))
	RegisterAccountRoutes(protected, svc)

	del := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/accounts/victim", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("no token is rejected and the account survives", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, del("").Code)
		require.Contains(t, store.accounts, "victim")
	})

	t.Run("authenticated caller can delete", func(t *testing.T) {
		token, err := svc.Login(context.Background(), "staff-1", "hunter2")
		require.NoError(t, err)

		require.Equal(t, http.StatusOK, del(token).Code)
		require.NotContains(t, store.accounts, "victim")
	})
}
