package auth

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-http/engine/auth/store"
	"github.com/kestrel-http/engine/hdr"
)

type fakeExchange struct {
	method string
	path   string
	reqH   hdr.Header
	respH  hdr.Header
	etag   string
	remote string
	sess   map[string]interface{}
}

func newFakeExchange(method, path string) *fakeExchange {
	return &fakeExchange{
		method: method,
		path:   path,
		reqH:   hdr.Header{},
		respH:  hdr.Header{},
		etag:   `"etag-1"`,
		remote: "127.0.0.1:1234",
		sess:   make(map[string]interface{}),
	}
}

func (f *fakeExchange) Method() string                   { return f.method }
func (f *fakeExchange) Path() string                     { return f.path }
func (f *fakeExchange) RequestHeader() hdr.Header         { return f.reqH }
func (f *fakeExchange) ResponseHeader() hdr.Header        { return f.respH }
func (f *fakeExchange) ETag() string                      { return f.etag }
func (f *fakeExchange) RemoteAddr() string                { return f.remote }
func (f *fakeExchange) SessionGet(k string) (interface{}, bool) {
	v, ok := f.sess[k]
	return v, ok
}
func (f *fakeExchange) SessionSet(k string, v interface{}) { f.sess[k] = v }

func basicConfig() *Config {
	st := store.NewInternal()
	st.AddUser("alice", "wonderland")
	return &Config{Scheme: SchemeBasic, Realm: "test", Store: st, Secret: "procsecret"}
}

func TestBasicAuthMissingHeaderChallenges(t *testing.T) {
	cfg := basicConfig()
	ex := newFakeExchange("GET", "/")
	err := authenticate(cfg, ex)
	require.Error(t, err)
	require.Equal(t, `Basic realm="test"`, ex.respH.Get(hdr.WWWAuthenticate))
}

func TestBasicAuthSuccess(t *testing.T) {
	cfg := basicConfig()
	ex := newFakeExchange("GET", "/")
	ex.reqH.Set(hdr.Authorization, "Basic "+b64("alice:wonderland"))
	require.NoError(t, authenticate(cfg, ex))
	user, ok := ex.SessionGet(sessionKeyUser)
	require.True(t, ok)
	require.Equal(t, "alice", user)
}

func TestBasicAuthWrongPassword(t *testing.T) {
	cfg := basicConfig()
	ex := newFakeExchange("GET", "/")
	ex.reqH.Set(hdr.Authorization, "Basic "+b64("alice:wrong"))
	require.Error(t, authenticate(cfg, ex))
}

func TestBasicAuthSessionCacheShortCircuits(t *testing.T) {
	cfg := basicConfig()
	ex := newFakeExchange("GET", "/")
	ex.reqH.Set(hdr.Authorization, "Basic "+b64("alice:wonderland"))
	require.NoError(t, authenticate(cfg, ex))

	ex2 := newFakeExchange("GET", "/")
	ex2.sess = ex.sess // carry the session forward, no Authorization header this time
	require.NoError(t, authenticate(cfg, ex2))
}

func TestBasicAuthSessionCacheInvalidatedByTouch(t *testing.T) {
	cfg := basicConfig()
	ex := newFakeExchange("GET", "/")
	ex.reqH.Set(hdr.Authorization, "Basic "+b64("alice:wonderland"))
	require.NoError(t, authenticate(cfg, ex))

	cfg.Touch()
	ex2 := newFakeExchange("GET", "/")
	ex2.sess = ex.sess
	require.Error(t, authenticate(cfg, ex2))
}

func TestRequiredAbilitiesForbidden(t *testing.T) {
	st := store.NewInternal()
	st.AddRole("admin", "manage")
	st.AddUser("alice", "wonderland", "reader")
	cfg := &Config{Scheme: SchemeBasic, Realm: "test", Store: st, RequiredAbilities: []string{"manage"}}
	ex := newFakeExchange("GET", "/")
	ex.reqH.Set(hdr.Authorization, "Basic "+b64("alice:wonderland"))
	err := authenticate(cfg, ex)
	require.Error(t, err)
}

func TestDigestRoundTrip(t *testing.T) {
	st := store.NewInternal()
	st.AddUser("alice", "wonderland")
	cfg := &Config{Scheme: SchemeDigest, Realm: "test", Store: st, Secret: "procsecret", QOP: "auth"}
	ex := newFakeExchange("GET", "/secret")

	require.Error(t, authenticate(cfg, ex))
	challengeHeader := ex.respH.Get(hdr.WWWAuthenticate)
	require.Contains(t, challengeHeader, "Digest")

	fields := decodeDigestDetails(challengeHeader[len("Digest "):])
	nonce := fields["nonce"]
	require.NotEmpty(t, nonce)

	response := calcDigest("alice", "wonderland", false, "test", "/secret", nonce, "auth", "00000001", "cnonce123", "GET")
	authz := `Digest username="alice", realm="test", nonce="` + nonce + `", uri="/secret", ` +
		`response="` + response + `", qop=auth, nc=00000001, cnonce="cnonce123"`
	ex2 := newFakeExchange("GET", "/secret")
	ex2.reqH.Set(hdr.Authorization, authz)
	require.NoError(t, authenticate(cfg, ex2))
}

func TestDigestStaleNonceRejected(t *testing.T) {
	st := store.NewInternal()
	st.AddUser("alice", "wonderland")
	cfg := &Config{Scheme: SchemeDigest, Realm: "test", Store: st, Secret: "procsecret"}
	ex := newFakeExchange("GET", "/secret")

	stale := staleNonce(cfg.Secret, ex.ETag(), cfg.Realm)
	response := calcDigest("alice", "wonderland", false, "test", "/secret", stale, "", "", "", "GET")
	authz := `Digest username="alice", realm="test", nonce="` + stale + `", uri="/secret", response="` + response + `"`
	ex.reqH.Set(hdr.Authorization, authz)
	require.Error(t, authenticate(cfg, ex))
}

func staleNonce(secret, etag, realm string) string {
	old := time.Now().Add(-10 * time.Minute).Unix()
	raw := fmt.Sprintf("%s:%s:%s:%x", secret, etag, realm, old)
	return b64(raw)
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
