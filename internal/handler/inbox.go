package handler

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"hostel/internal/attachment"
	"hostel/internal/feedback"
)

func (h *Handler) analyticsSummary(c *gin.Context) {
	months := h.TrendMonths
	if v := c.Query("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, map[string]string{"months": "must be an integer"})
			return
		}
		months = n
	}
	sum, err := h.Analytics.Summary(c.Request.Context(), months)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) analyticsMe(c *gin.Context) {
	sum, err := h.Analytics.ForStudent(c.Request.Context(), principal(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

type feedbackRequest struct {
	Type      feedback.Kind `json:"type"`
	Message   string        `json:"message"`
	Anonymous bool          `json:"anonymous"`
}

func (h *Handler) submitFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	p := principal(c)
	f, err := h.Feedback.Submit(c.Request.Context(), feedback.Input{
		Type:       req.Type,
		Message:    req.Message,
		Anonymous:  req.Anonymous,
		StudentRef: p.ID,
		Name:       p.Name,
		RoomNumber: p.RoomNumber,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *Handler) listFeedback(c *gin.Context) {
	list, err := h.Feedback.List(c.Request.Context(), feedback.Kind(c.Query("type")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": list})
}

// uploadAttachment accepts a multipart "file" field or a JSON {"data": <data URL>}
// body and returns the hosted URL to put in a complaint's attachmentUrl.
func (h *Handler) uploadAttachment(c *gin.Context) {
	if h.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, attachment.MaxBytes+1<<20)

	var (
		res attachment.Result
		err error
		ctx = c.Request.Context()
	)
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		file, header, ferr := c.Request.FormFile("file")
		if ferr != nil {
			badRequest(c, map[string]string{"file": "is required"})
			return
		}
		defer file.Close()
		data, ferr := io.ReadAll(io.LimitReader(file, attachment.MaxBytes+1))
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}
		if len(data) > attachment.MaxBytes {
			badRequest(c, map[string]string{"file": "must be at most 5 MB"})
			return
		}
		res, err = h.Uploader.UploadBytes(ctx, data, header.Filename)
	} else {
		var body struct {
			Data string `json:"data"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": `provide {"data": "<base64 data URL>"}`})
			return
		}
		if !strings.HasPrefix(body.Data, "data:image/") {
			badRequest(c, map[string]string{"data": "must be an image data URL"})
			return
		}
		res, err = h.Uploader.UploadDataURL(ctx, body.Data)
	}
	if errors.Is(err, attachment.ErrEmpty) {
		writeError(c, err)
		return
	}
	if err != nil {
		log.Printf("attachment upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": res.SecureURL, "publicId": res.PublicID})
}
