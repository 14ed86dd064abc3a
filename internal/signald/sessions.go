package signald

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sentinelops/ptt/internal/domain"
)

// SessionStore mints session descriptors lazily per channel and fresh
// participant registrations on every request. Join tokens are never reused:
// a reconnecting client registers again and gets a new one.
type SessionStore struct {
	mu        sync.Mutex
	byChannel map[domain.ChannelID]domain.SessionDescriptor
	byID      map[string]domain.ChannelID
	region    string
	mediaBase string
}

func NewSessionStore(region, mediaBase string) *SessionStore {
	return &SessionStore{
		byChannel: make(map[domain.ChannelID]domain.SessionDescriptor),
		byID:      make(map[string]domain.ChannelID),
		region:    region,
		mediaBase: mediaBase,
	}
}

func (s *SessionStore) GetOrCreate(ch domain.ChannelID) domain.SessionDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if desc, ok := s.byChannel[ch]; ok {
		return desc
	}
	id := uuid.NewString()
	desc := domain.SessionDescriptor{
		SessionID:         id,
		ExternalSessionID: string(ch) + "-" + id,
		Region:            s.region,
		MediaPlacement:    s.mediaBase + "/media/" + id,
	}
	s.byChannel[ch] = desc
	s.byID[id] = ch
	log.Info().Str("module", "signald.sessions").Str("channel", string(ch)).Str("session", id).Msg("session created")
	return desc
}

func (s *SessionStore) Register(sessionID string, pid domain.ParticipantID) (domain.ParticipantRegistration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[sessionID]; !ok {
		return domain.ParticipantRegistration{}, false
	}
	reg := domain.ParticipantRegistration{
		ParticipantID:         pid,
		ExternalParticipantID: uuid.NewString(),
		JoinToken:             uuid.NewString(),
	}
	log.Info().Str("module", "signald.sessions").Str("session", sessionID).Str("participant", string(pid)).Msg("participant registered")
	return reg, true
}

// SessionAPI exposes the two issuance endpoints.
type SessionAPI struct {
	Store   *SessionStore
	Catalog domain.Catalog
}

func (api *SessionAPI) CreateSession(c *gin.Context) {
	var req struct {
		ChannelID domain.ChannelID `json:"channelId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ChannelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid channelId"})
		return
	}
	if _, ok := api.Catalog.Lookup(req.ChannelID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown channel"})
		return
	}
	c.JSON(http.StatusCreated, api.Store.GetOrCreate(req.ChannelID))
}

func (api *SessionAPI) CreateParticipant(c *gin.Context) {
	var req struct {
		ParticipantID  domain.ParticipantID `json:"participantId"`
		ClearanceLevel int                  `json:"clearanceLevel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := req.ParticipantID.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reg, ok := api.Store.Register(c.Param("id"), req.ParticipantID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	c.JSON(http.StatusCreated, reg)
}
