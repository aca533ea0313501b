package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"huddle/internal/app"
	"huddle/internal/core"
	"huddle/internal/domain"
)

type Handlers struct {
	Rooms   *app.RoomService
	Control *app.ControlService
	Chat    *app.ChatBuffer
	Hub     *app.Hub
}

// CreateRoom returns the room plus the generated host participant id;
// the id is the caller's only way to re-identify as host later.
func (h *Handlers) CreateRoom(c *gin.Context) {
	var req struct {
		Title              string `json:"title"`
		Description        string `json:"description"`
		Password           string `json:"password"`
		IsRecordingEnabled bool   `json:"isRecordingEnabled"`
		MaxParticipants    int    `json:"maxParticipants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: invalid body", domain.ErrBadRequest))
		return
	}

	room, host, err := h.Rooms.Create(c.Request.Context(), app.CreateRoomInput{
		Title:              req.Title,
		Description:        req.Description,
		Password:           req.Password,
		IsRecordingEnabled: req.IsRecordingEnabled,
		MaxParticipants:    req.MaxParticipants,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"room":              core.ToRoomDTO(room),
		"hostParticipantId": host.ID,
	})
}

func (h *Handlers) GetRoom(c *gin.Context) {
	room, err := h.Rooms.Get(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, core.ToRoomDTO(room))
}

func (h *Handlers) JoinRoom(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: invalid body", domain.ErrBadRequest))
		return
	}

	room, p, err := h.Rooms.Join(c.Request.Context(), domain.RoomID(c.Param("id")), req.Name, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room":        core.ToRoomDTO(room),
		"participant": core.ToParticipantDTO(p),
	})
}

// LeaveRoom is idempotent; leaving twice, or leaving an unknown
// participant, is still a success.
func (h *Handlers) LeaveRoom(c *gin.Context) {
	var req struct {
		ParticipantID domain.ParticipantID `json:"participantId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ParticipantID == "" {
		respondError(c, fmt.Errorf("%w: participantId is required", domain.ErrBadRequest))
		return
	}
	if err := h.Rooms.Leave(c.Request.Context(), req.ParticipantID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) CheckTimeout(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	status, err := h.Rooms.CheckTimeout(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	if status.ShouldClose {
		h.Hub.EvictRoom(roomID)
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handlers) EndMeeting(c *gin.Context) {
	var req struct {
		ParticipantID domain.ParticipantID `json:"participantId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ParticipantID == "" {
		respondError(c, fmt.Errorf("%w: participantId is required", domain.ErrBadRequest))
		return
	}
	roomID := domain.RoomID(c.Param("id"))
	if err := h.Rooms.End(c.Request.Context(), roomID, req.ParticipantID); err != nil {
		respondError(c, err)
		return
	}
	h.Hub.EvictRoom(roomID)
	c.Status(http.StatusNoContent)
}

func (h *Handlers) ListParticipants(c *gin.Context) {
	ps, err := h.Rooms.ListParticipants(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]core.ParticipantDTO, 0, len(ps))
	for i := range ps {
		out = append(out, core.ToParticipantDTO(&ps[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) UpdateOwnParticipant(c *gin.Context) {
	var flags app.MediaFlags
	if err := c.ShouldBindJSON(&flags); err != nil {
		respondError(c, fmt.Errorf("%w: invalid body", domain.ErrBadRequest))
		return
	}
	p, err := h.Rooms.UpdateOwn(c.Request.Context(), domain.ParticipantID(c.Param("id")), flags)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Hub.NotifyUpdate(p)
	c.JSON(http.StatusOK, core.ToParticipantDTO(p))
}

func (h *Handlers) Kick(c *gin.Context) {
	var req struct {
		HostID domain.ParticipantID `json:"hostId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.HostID == "" {
		respondError(c, fmt.Errorf("%w: hostId is required", domain.ErrBadRequest))
		return
	}
	target, err := h.Control.Kick(c.Request.Context(), req.HostID, domain.ParticipantID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	h.Hub.NotifyKicked(target)
	c.Status(http.StatusNoContent)
}

func (h *Handlers) Mute(c *gin.Context) {
	var req struct {
		HostID domain.ParticipantID `json:"hostId"`
		Mute   bool                 `json:"mute"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.HostID == "" {
		respondError(c, fmt.Errorf("%w: hostId is required", domain.ErrBadRequest))
		return
	}
	target, err := h.Control.Mute(c.Request.Context(), req.HostID, domain.ParticipantID(c.Param("id")), req.Mute)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Hub.NotifyControl(target, "mute")
	c.JSON(http.StatusOK, core.ToParticipantDTO(target))
}

func (h *Handlers) VideoControl(c *gin.Context) {
	var req struct {
		HostID domain.ParticipantID `json:"hostId"`
		Enable bool                 `json:"enable"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.HostID == "" {
		respondError(c, fmt.Errorf("%w: hostId is required", domain.ErrBadRequest))
		return
	}
	target, err := h.Control.SetVideo(c.Request.Context(), req.HostID, domain.ParticipantID(c.Param("id")), req.Enable)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Hub.NotifyControl(target, "video")
	c.JSON(http.StatusOK, core.ToParticipantDTO(target))
}

func (h *Handlers) ScreenShareControl(c *gin.Context) {
	var req struct {
		HostID domain.ParticipantID `json:"hostId"`
		Enable bool                 `json:"enable"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.HostID == "" {
		respondError(c, fmt.Errorf("%w: hostId is required", domain.ErrBadRequest))
		return
	}
	target, err := h.Control.SetScreenShare(c.Request.Context(), req.HostID, domain.ParticipantID(c.Param("id")), req.Enable)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Hub.NotifyControl(target, "screenshare")
	c.JSON(http.StatusOK, core.ToParticipantDTO(target))
}

func (h *Handlers) SendChatMessage(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	var req struct {
		Sender  string `json:"sender"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: invalid body", domain.ErrBadRequest))
		return
	}

	room, err := h.Rooms.Get(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !room.IsActive {
		respondError(c, domain.ErrGone)
		return
	}

	msg, err := h.Chat.Append(roomID, req.Sender, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Hub.BroadcastChat(msg)
	c.JSON(http.StatusCreated, msg)
}

func (h *Handlers) ListChatMessages(c *gin.Context) {
	c.JSON(http.StatusOK, h.Chat.List(domain.RoomID(c.Param("id"))))
}

func (h *Handlers) ClearChatMessages(c *gin.Context) {
	h.Chat.Clear(domain.RoomID(c.Param("id")))
	c.Status(http.StatusNoContent)
}

// RelaySignal acknowledges receipt; delivery happens over the push
// channel.
func (h *Handlers) RelaySignal(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	var req struct {
		ParticipantID domain.ParticipantID `json:"participantId"`
		Signal        app.SignalPayload    `json:"signal"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ParticipantID == "" {
		respondError(c, fmt.Errorf("%w: participantId and signal are required", domain.ErrBadRequest))
		return
	}
	if err := h.Hub.RelaySignal(req.ParticipantID, roomID, req.Signal); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "relayed"})
}
