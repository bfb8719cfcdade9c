package organization_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consortia/consortia/internal/organization"
	"github.com/consortia/consortia/internal/permission"
	"github.com/consortia/consortia/internal/principal"
	"github.com/consortia/consortia/internal/rule"
	"github.com/consortia/consortia/internal/sealbox"
)

type stubOrgRepo struct {
	orgs    map[int64]*organization.Organization
	setKeys []string
}

var _ organization.Repository = (*stubOrgRepo)(nil)

func (s *stubOrgRepo) ListOrganizations(ctx context.Context) ([]organization.Organization, error) {
	var out []organization.Organization
	for _, org := range s.orgs {
		out = append(out, *org)
	}
	return out, nil
}

func (s *stubOrgRepo) GetOrganization(ctx context.Context, id int64) (*organization.Organization, error) {
	org, ok := s.orgs[id]
	if !ok {
		return nil, nil
	}
	copied := *org
	return &copied, nil
}

func (s *stubOrgRepo) CreateOrganization(ctx context.Context, name, address, domain string) (*organization.Organization, error) {
	org := &organization.Organization{ID: int64(len(s.orgs) + 1), Name: name, Address: address, Domain: domain}
	s.orgs[org.ID] = org
	return org, nil
}

func (s *stubOrgRepo) SetPublicKey(ctx context.Context, id int64, publicKey string) (*organization.Organization, error) {
	org, ok := s.orgs[id]
	if !ok {
		return nil, nil
	}
	s.setKeys = append(s.setKeys, publicKey)
	org.PublicKey = publicKey
	copied := *org
	return &copied, nil
}

type stubIdentities map[int64]principal.Identity

func (s stubIdentities) FindIdentity(ctx context.Context, id int64) (*principal.Identity, error) {
	identity, ok := s[id]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}

func (s stubIdentities) TouchLastSeen(ctx context.Context, id int64, seen time.Time) error {
	return nil
}

type stubRules map[int64][]rule.Rule

func (s stubRules) ListEffectiveRules(ctx context.Context, userID int64) ([]rule.Rule, error) {
	return s[userID], nil
}

type fixture struct {
	repo    *stubOrgRepo
	handler http.Handler
	codec   *principal.Codec
}

// newFixture wires the handler exactly as the coordinator router does: the
// guard admits all three kinds, then rule checks run per route group.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec, err := principal.NewCodec("test-secret-which-is-long-enough", time.Hour)
	require.NoError(t, err)

	identities := stubIdentities{
		11: {ID: 11, Kind: principal.KindUser, OrganizationID: 3, Name: "alice"},
		12: {ID: 12, Kind: principal.KindUser, OrganizationID: 3, Name: "mallory"},
		21: {ID: 21, Kind: principal.KindNode, OrganizationID: 3, Name: "hospital-a node"},
	}
	rules := stubRules{
		11: {
			{ID: 1, Resource: "organization", Scope: rule.ScopeOrganization, Operation: rule.OperationRead},
			{ID: 2, Resource: "organization", Scope: rule.ScopeOrganization, Operation: rule.OperationUpdate},
		},
	}

	repo := &stubOrgRepo{orgs: map[int64]*organization.Organization{
		3: {ID: 3, Name: "hospital-a", PublicKey: "age1hospitala"},
		4: {ID: 4, Name: "hospital-b", PublicKey: "age1hospitalb"},
	}}

	guard := principal.Guard{Resolver: principal.NewResolver(codec, identities, slog.Default()), Logger: slog.Default()}
	perms := permission.Middleware{Engine: permission.NewEngine(rules), Logger: slog.Default()}
	handler := organization.NewHandler(slog.Default(), repo, perms)

	r := chi.NewRouter()
	r.Route("/organization", func(r chi.Router) {
		r.Use(guard.Allow(principal.KindUser, principal.KindNode, principal.KindContainer))
		handler.MountRoutes(r)
	})
	return &fixture{repo: repo, handler: r, codec: codec}
}

func (f *fixture) userToken(t *testing.T, id int64) string {
	t.Helper()
	claims := principal.Claims{Kind: string(principal.KindUser), OrganizationID: 3}
	claims.Subject = strconv.FormatInt(id, 10)
	raw, err := f.codec.Sign(claims, "jti-user")
	require.NoError(t, err)
	return raw
}

func (f *fixture) nodeToken(t *testing.T) string {
	t.Helper()
	claims := principal.Claims{Kind: string(principal.KindNode), OrganizationID: 3}
	claims.Subject = "21"
	raw, err := f.codec.Sign(claims, "jti-node")
	require.NoError(t, err)
	return raw
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	return res
}

func TestGetOrganizationReturnsPublicKey(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodGet, "/organization/3", f.userToken(t, 11), "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"public_key":"age1hospitala"`)
}

func TestGetUnknownOrganizationIsNotFound(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodGet, "/organization/404", f.userToken(t, 11), "")
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestGetOrganizationWithoutRuleIsForbidden(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodGet, "/organization/3", f.userToken(t, 12), "")
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestNodeRotatesItsOwnOrganizationKey(t *testing.T) {
	f := newFixture(t)
	publicKey, _, err := sealbox.GenerateKeypair()
	require.NoError(t, err)

	res := f.do(t, http.MethodPatch, "/organization/3", f.nodeToken(t), `{"public_key":"`+publicKey+`"}`)
	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, f.repo.setKeys, 1)
	assert.Equal(t, publicKey, f.repo.setKeys[0])
}

func TestNodeCannotRotateAnotherOrganizationsKey(t *testing.T) {
	f := newFixture(t)
	publicKey, _, err := sealbox.GenerateKeypair()
	require.NoError(t, err)

	res := f.do(t, http.MethodPatch, "/organization/4", f.nodeToken(t), `{"public_key":"`+publicKey+`"}`)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Empty(t, f.repo.setKeys)
}

func TestUpdateRejectsUnparseableKey(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPatch, "/organization/3", f.nodeToken(t), `{"public_key":"not-an-age-key"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Empty(t, f.repo.setKeys)
}
