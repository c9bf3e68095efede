package httpapi

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"geoattend/internal/attendance"
	"geoattend/internal/audit"
	"geoattend/internal/auth"
	"geoattend/internal/fingerprint"
	"geoattend/internal/geo"
	"geoattend/internal/queue"
)

func (s *Server) handleSubmitAttendance(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	var req struct {
		SessionID  string               `json:"session_id" binding:"required"`
		Code       string               `json:"code" binding:"required,len=6,numeric"`
		Latitude   *float64             `json:"latitude" binding:"required"`
		Longitude  *float64             `json:"longitude" binding:"required"`
		DeviceHash string               `json:"device_hash" binding:"required"`
		DeviceInfo *fingerprint.Signals `json:"device_info"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_code": "bad_request"})
		return
	}

	loc := geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if !geo.Valid(loc) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinates", "error_code": "bad_request"})
		return
	}

	// When the raw signals are supplied the hash is recomputed here; the
	// client-supplied value is only trusted when signals are absent.
	deviceHash := req.DeviceHash
	if req.DeviceInfo != nil && !req.DeviceInfo.Empty() {
		deviceHash = fingerprint.Hash(*req.DeviceInfo)
	}

	res, err := s.validator.Submit(c.Request.Context(), attendance.Submission{
		SessionID:  req.SessionID,
		UserID:     claims.Subject,
		Code:       req.Code,
		Location:   loc,
		DeviceHash: deviceHash,
		UserAgent:  c.Request.UserAgent(),
		IPAddress:  c.ClientIP(),
	})
	if err != nil {
		s.writeSubmitRejection(c, claims.Subject, req.SessionID, err)
		return
	}

	s.metrics.SubmissionsTotal.WithLabelValues(res.Status).Inc()
	s.logEvent(c, "attendance_accepted", audit.SeverityInfo, &claims.Subject,
		"session="+req.SessionID+" status="+res.Status)

	// Hand the accepted check-in to the fraud-signal worker. Queue trouble
	// never fails an already-recorded submission.
	if err := s.queue.Publish(c.Request.Context(), queue.CheckinEvent{
		AttendanceID: res.AttendanceID,
		SessionID:    req.SessionID,
		DeviceHash:   deviceHash,
		AcceptedAt:   res.RecordedAt,
	}); err != nil {
		log.Printf("queue publish failed: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"attendance_id": res.AttendanceID,
		"recorded_at":   res.RecordedAt.Format(time.RFC3339Nano),
		"status":        res.Status,
	})
}

// writeSubmitRejection maps gate failures to stable error codes. The order in
// which gates run server-side guarantees the first relevant failure is the
// one reported.
func (s *Server) writeSubmitRejection(c *gin.Context, userID, sessionID string, err error) {
	reject := func(status int, code string, body gin.H) {
		s.metrics.SubmissionsTotal.WithLabelValues(code).Inc()
		s.logEvent(c, "attendance_rejected", audit.SeverityInfo, &userID,
			"session="+sessionID+" reason="+code)
		body["error_code"] = code
		c.JSON(status, body)
	}

	var oor *attendance.OutOfRangeError
	switch {
	case errors.Is(err, attendance.ErrSessionNotActive):
		reject(http.StatusConflict, "session_not_active", gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrInvalidCode):
		reject(http.StatusUnprocessableEntity, "invalid_code", gin.H{"error": err.Error()})
	case errors.As(err, &oor):
		reject(http.StatusUnprocessableEntity, "out_of_range", gin.H{
			"error":      oor.Error(),
			"distance_m": oor.DistanceMeters,
			"radius_m":   oor.RadiusMeters,
		})
	case errors.Is(err, attendance.ErrAlreadyMarked):
		reject(http.StatusConflict, "already_marked", gin.H{"error": err.Error()})
	default:
		s.metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "attendance submission failed"})
	}
}

func (s *Server) handleHistory(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	records, err := s.records.ListByUser(c.Request.Context(), claims.Subject, queryLimit(c, 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
