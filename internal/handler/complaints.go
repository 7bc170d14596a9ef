package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hostel/internal/auth"
	"hostel/internal/complaint"
)

const maxPageSize = 500

type createComplaintRequest struct {
	Title         string             `json:"title"`
	Description   string             `json:"description"`
	Category      complaint.Category `json:"category"`
	Priority      complaint.Priority `json:"priority"`
	RoomNumber    string             `json:"roomNumber"`
	AttachmentURL string             `json:"attachmentUrl"`
}

// createComplaint files a complaint for the calling student. The room
// defaults to the one on the session.
func (h *Handler) createComplaint(c *gin.Context) {
	var req createComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	p := principal(c)
	room := p.RoomNumber
	if room == "" {
		room = req.RoomNumber
	}
	created, err := h.Complaints.Create(c.Request.Context(), complaint.Input{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Priority:      req.Priority,
		StudentRef:    p.ID,
		StudentName:   p.Name,
		RoomNumber:    room,
		AttachmentURL: req.AttachmentURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// listComplaints returns matching complaints newest first. Students only
// ever see their own, whatever studentRef they pass.
func (h *Handler) listComplaints(c *gin.Context) {
	f, fields := parseFilter(c)
	if len(fields) > 0 {
		badRequest(c, fields)
		return
	}
	if p := principal(c); !p.IsAdmin() {
		f.StudentRef = p.ID
	}
	list, err := h.Complaints.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"complaints": list})
}

func parseFilter(c *gin.Context) (complaint.Filter, map[string]string) {
	fields := map[string]string{}
	f := complaint.Filter{
		Status:     complaint.Status(c.Query("status")),
		Category:   complaint.Category(c.Query("category")),
		Priority:   complaint.Priority(c.Query("priority")),
		StudentRef: c.Query("studentRef"),
	}
	if f.Status != "" && !f.Status.Valid() {
		fields["status"] = "is not a valid status"
	}
	if f.Category != "" && !f.Category.Valid() {
		fields["category"] = "is not a valid category"
	}
	if f.Priority != "" && !f.Priority.Valid() {
		fields["priority"] = "is not a valid priority"
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			fields["limit"] = "must be between 1 and " + strconv.Itoa(maxPageSize)
		}
		f.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields["offset"] = "must be a non-negative integer"
		}
		f.Offset = n
	}
	return f, fields
}

// visible loads a complaint the caller may read. Another student's complaint
// is reported as not found so ids cannot be probed.
func (h *Handler) visible(c *gin.Context, p auth.Principal) (complaint.Complaint, error) {
	found, err := h.Complaints.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		return complaint.Complaint{}, err
	}
	if !p.IsAdmin() && found.StudentRef != p.ID {
		return complaint.Complaint{}, complaint.ErrNotFound
	}
	return found, nil
}

func (h *Handler) getComplaint(c *gin.Context) {
	found, err := h.visible(c, principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

type transitionRequest struct {
	Status  complaint.Status `json:"status"`
	Version *int64           `json:"version"`
}

// transitionComplaint changes status. With a version the update only
// applies if nobody changed the complaint since the caller read it.
func (h *Handler) transitionComplaint(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if req.Status == "" {
		badRequest(c, map[string]string{"status": "is required"})
		return
	}
	var (
		updated complaint.Complaint
		err     error
		ctx     = c.Request.Context()
		id      = c.Param("id")
		actor   = principal(c).ID
	)
	if req.Version != nil {
		updated, err = h.Complaints.TransitionAt(ctx, id, req.Status, actor, *req.Version)
	} else {
		updated, err = h.Complaints.Transition(ctx, id, req.Status, actor)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) complaintHistory(c *gin.Context) {
	found, err := h.visible(c, principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if h.History == nil {
		writeError(c, errors.New("history store not configured"))
		return
	}
	entries, err := h.History.List(c.Request.Context(), found.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}
