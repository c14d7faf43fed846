package http

import (
	"net/http"
	"strconv"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/auth"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type meetingHandlers struct {
	orch     *orch.Orchestrator
	verifier *auth.Verifier
}

type meetingSettingsRequest struct {
	AllowChat        *bool  `json:"allowChat"`
	AllowScreenShare *bool  `json:"allowScreenShare"`
	WaitingRoom      bool   `json:"waitingRoom"`
	MuteOnEntry      bool   `json:"muteOnEntry"`
	Password         string `json:"password"`
}

type createMeetingRequest struct {
	Title           string                 `json:"title"`
	MaxParticipants int                    `json:"maxParticipants"`
	Settings        meetingSettingsRequest `json:"settings"`
}

func (r createMeetingRequest) toApp() app.CreateRoomRequest {
	s := domain.DefaultSettings()
	if r.Settings.AllowChat != nil {
		s.AllowChat = *r.Settings.AllowChat
	}
	if r.Settings.AllowScreenShare != nil {
		s.AllowScreenShare = *r.Settings.AllowScreenShare
	}
	s.WaitingRoom = r.Settings.WaitingRoom
	s.MuteOnEntry = r.Settings.MuteOnEntry
	return app.CreateRoomRequest{
		Title:           r.Title,
		MaxParticipants: r.MaxParticipants,
		Settings:        s,
		Password:        r.Settings.Password,
	}
}

// POST /api/meetings
func (h *meetingHandlers) create(c *gin.Context) {
	var req createMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.Validation("invalid meeting request"))
		return
	}
	room, err := h.orch.Rooms.Create(c.Request.Context(), identityFrom(c), req.toApp())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room.View())
}

// GET /api/meetings/:id
func (h *meetingHandlers) get(c *gin.Context) {
	room, err := h.orch.Rooms.Get(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room.View())
}

// GET /api/meetings/:id/participants
func (h *meetingHandlers) participants(c *gin.Context) {
	roster, err := h.orch.Roster(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": roster})
}

// POST /api/meetings/:id/start
func (h *meetingHandlers) start(c *gin.Context) {
	room, err := h.orch.StartMeeting(c.Request.Context(), identityFrom(c).ID, domain.RoomID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room.View())
}

// POST /api/meetings/:id/end
func (h *meetingHandlers) end(c *gin.Context) {
	room, err := h.orch.EndMeeting(c.Request.Context(), identityFrom(c).ID, domain.RoomID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room.View())
}

// GET /api/meetings/:id/messages?limit=
func (h *meetingHandlers) messages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, domain.Validation("limit must be a positive number"))
			return
		}
		limit = n
	}
	msgs, err := h.orch.History(c.Request.Context(), identityFrom(c).ID, domain.RoomID(c.Param("id")), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// POST /api/session stores a verified token in the cookie session.
func (h *meetingHandlers) createSession(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		writeError(c, domain.Validation("token is required"))
		return
	}
	identity, err := h.verifier.Verify(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	session := sessions.Default(c)
	session.Set(sessionTokenKey, req.Token)
	if err := session.Save(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identityId": identity.ID, "displayName": identity.DisplayName})
}

// DELETE /api/session
func (h *meetingHandlers) deleteSession(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
