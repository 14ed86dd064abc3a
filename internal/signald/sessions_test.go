package signald

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelops/ptt/internal/domain"
)

func testCatalog(t *testing.T) domain.Catalog {
	t.Helper()
	catalog, err := domain.NewCatalog(
		domain.Channel{ID: "main", DisplayName: "Main", Kind: domain.ChannelStandard, RequiredClearance: 0},
		domain.Channel{ID: "emergency", DisplayName: "Emergency", Kind: domain.ChannelPriority, RequiredClearance: 2},
	)
	require.NoError(t, err)
	return catalog
}

func TestSessionStore_OneSessionPerChannel(t *testing.T) {
	store := NewSessionStore("us-west-2", "http://media.local")

	first := store.GetOrCreate("main")
	again := store.GetOrCreate("main")
	other := store.GetOrCreate("emergency")

	assert.Equal(t, first, again)
	assert.NotEqual(t, first.SessionID, other.SessionID)
	assert.Equal(t, "us-west-2", first.Region)
	assert.Equal(t, "http://media.local/media/"+first.SessionID, first.MediaPlacement)
	assert.True(t, strings.HasPrefix(first.ExternalSessionID, "main-"))
}

func TestSessionStore_RegisterMintsFreshTokens(t *testing.T) {
	store := NewSessionStore("us-west-2", "http://media.local")
	desc := store.GetOrCreate("main")

	first, ok := store.Register(desc.SessionID, "op-7")
	require.True(t, ok)
	second, ok := store.Register(desc.SessionID, "op-7")
	require.True(t, ok)

	// a rejoin always gets a new join token, never a replayed one
	assert.NotEqual(t, first.JoinToken, second.JoinToken)
	assert.NotEqual(t, first.ExternalParticipantID, second.ExternalParticipantID)
	assert.Equal(t, domain.ParticipantID("op-7"), first.ParticipantID)

	_, ok = store.Register("no-such-session", "op-7")
	assert.False(t, ok)
}

func newSessionRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := &SessionAPI{
		Store:   NewSessionStore("us-west-2", "http://media.local"),
		Catalog: testCatalog(t),
	}
	r := gin.New()
	grp := r.Group("/api", IdentityTokenMiddleware())
	grp.POST("/sessions", api.CreateSession)
	grp.POST("/sessions/:id/participants", api.CreateParticipant)
	return r
}

func doJSON(r *gin.Engine, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionAPI_CreateSession(t *testing.T) {
	r := newSessionRouter(t)

	w := doJSON(r, "/api/sessions", "tok", `{"channelId":"main"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"sessionId"`)
	assert.Contains(t, w.Body.String(), `"mediaPlacement"`)

	w = doJSON(r, "/api/sessions", "tok", `{"channelId":"no-such-channel"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, "/api/sessions", "tok", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, "/api/sessions", "", `{"channelId":"main"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionAPI_CreateParticipant(t *testing.T) {
	r := newSessionRouter(t)

	w := doJSON(r, "/api/sessions", "tok", `{"channelId":"main"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var desc domain.SessionDescriptor
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &desc))

	w = doJSON(r, "/api/sessions/"+desc.SessionID+"/participants", "tok", `{"participantId":"op-7","clearanceLevel":3}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"joinToken"`)

	w = doJSON(r, "/api/sessions/no-such-session/participants", "tok", `{"participantId":"op-7"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, "/api/sessions/"+desc.SessionID+"/participants", "tok", `{"participantId":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
