package principal_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consortia/consortia/internal/principal"
)

func guardFixture(t *testing.T) (principal.Guard, *principal.Codec) {
	t.Helper()
	repo := &stubRepo{identities: map[int64]principal.Identity{
		1: {ID: 1, Kind: principal.KindUser, OrganizationID: 10},
		2: {ID: 2, Kind: principal.KindNode, OrganizationID: 10},
	}}
	resolver, codec := newResolver(t, repo)
	return principal.Guard{Resolver: resolver, Logger: slog.Default()}, codec
}

func doGuarded(t *testing.T, guard principal.Guard, token string, kinds ...principal.Kind) *httptest.ResponseRecorder {
	t.Helper()
	var captured *principal.Principal
	handler := guard.Allow(kinds...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := principal.FromContext(r.Context()); ok {
			captured = &p
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code == http.StatusOK {
		require.NotNil(t, captured, "handler must see the resolved principal")
	}
	return res
}

func TestGuardAllowsDeclaredKind(t *testing.T) {
	guard, codec := guardFixture(t)
	token := signFor(t, codec, principal.KindNode, 2, principal.Claims{})

	res := doGuarded(t, guard, token, principal.KindNode)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestGuardRejectsOtherKindsDeterministically(t *testing.T) {
	guard, codec := guardFixture(t)

	userToken := signFor(t, codec, principal.KindUser, 1, principal.Claims{})
	containerToken := signFor(t, codec, principal.KindContainer, 0, principal.Claims{
		OrganizationID: 10, NodeID: 2, TaskID: 7,
	})

	// A node-only endpoint turns away users and containers with a typed
	// 403 on every attempt, regardless of anything else in the credential.
	for i := 0; i < 3; i++ {
		res := doGuarded(t, guard, userToken, principal.KindNode)
		assert.Equal(t, http.StatusForbidden, res.Code)

		res = doGuarded(t, guard, containerToken, principal.KindNode)
		assert.Equal(t, http.StatusForbidden, res.Code)
	}
}

func TestGuardRejectsMissingAndInvalidCredential(t *testing.T) {
	guard, _ := guardFixture(t)

	res := doGuarded(t, guard, "", principal.KindUser)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = doGuarded(t, guard, "garbage", principal.KindUser)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestGuardRejectsExpiredCredential(t *testing.T) {
	repo := &stubRepo{identities: map[int64]principal.Identity{
		1: {ID: 1, Kind: principal.KindUser, OrganizationID: 10},
	}}
	expiredCodec, err := principal.NewCodec("test-secret-which-is-long-enough", -time.Minute)
	require.NoError(t, err)
	claims := principal.Claims{Kind: string(principal.KindUser)}
	claims.Subject = strconv.FormatInt(1, 10)
	token, err := expiredCodec.Sign(claims, "jti")
	require.NoError(t, err)

	resolver := principal.NewResolver(expiredCodec, repo, slog.Default())
	guard := principal.Guard{Resolver: resolver, Logger: slog.Default()}

	res := doGuarded(t, guard, token, principal.KindUser)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, principal.BearerToken(req))

	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", principal.BearerToken(req))

	req.Header.Set("Authorization", "bearer lowercase-scheme")
	assert.Equal(t, "lowercase-scheme", principal.BearerToken(req))

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, principal.BearerToken(req))
}
