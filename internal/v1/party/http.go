package party

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/config"
)

// HTTPHandlers bundles the REST surface that sits alongside the websocket
// endpoint: lobby listing, ICE server config, and the comments proxy.
type HTTPHandlers struct {
	registry  *Registry
	cfg       *config.Config
	comments  *CommentsProxy
	startedAt time.Time
}

func NewHTTPHandlers(reg *Registry, cfg *config.Config, comments *CommentsProxy) *HTTPHandlers {
	return &HTTPHandlers{registry: reg, cfg: cfg, comments: comments, startedAt: time.Now()}
}

type healthResponse struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
	Users  int    `json:"users"`
	Uptime string `json:"uptime"`
}

// Health serves GET /health per the external interface: room/user counts
// and process uptime alongside the ordinary liveness status.
func (h *HTTPHandlers) Health(c *gin.Context) {
	rooms, users := h.registry.Stats()
	c.JSON(http.StatusOK, healthResponse{
		Status: "ok",
		Rooms:  rooms,
		Users:  users,
		Uptime: time.Since(h.startedAt).String(),
	})
}

type iceServer struct {
	Urls       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type iceServersResponse struct {
	IceServers []iceServer `json:"iceServers"`
}

// IceServers serves GET /ice-servers: STUN defaults plus an optional TURN
// server built from config.
func (h *HTTPHandlers) IceServers(c *gin.Context) {
	servers := []iceServer{
		{Urls: []string{"stun:stun.l.google.com:19302"}},
		{Urls: []string{"stun:stun1.l.google.com:19302"}},
	}
	if h.cfg.TurnURL != "" {
		servers = append(servers, iceServer{
			Urls:       []string{h.cfg.TurnURL},
			Username:   h.cfg.TurnUsername,
			Credential: h.cfg.TurnCredential,
		})
	}
	c.JSON(http.StatusOK, iceServersResponse{IceServers: servers})
}

type roomsResponse struct {
	Enabled bool          `json:"enabled"`
	Rooms   []RoomSummary `json:"rooms"`
}

// Rooms serves GET /rooms: the public lobby listing of non-hidden rooms.
func (h *HTTPHandlers) Rooms(c *gin.Context) {
	c.JSON(http.StatusOK, roomsResponse{Enabled: true, Rooms: h.registry.EnumerateVisible()})
}

// Comments serves GET /comments/:videoId, a transparent proxy to a
// rotating set of upstream instances with a 5-minute cache.
func (h *HTTPHandlers) Comments(c *gin.Context) {
	videoId := c.Param("videoId")
	sortBy := c.DefaultQuery("sort_by", "top")
	continuation := c.Query("continuation")

	body, err := h.comments.Fetch(c.Request.Context(), videoId, sortBy, continuation)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "comments upstream unavailable"})
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

// Ws upgrades the connection and blocks for its lifetime.
func (h *HTTPHandlers) Ws(c *gin.Context) {
	h.registry.ServeWs(c.Request, c.Writer)
}
