package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/neurodetect-server/internal/domain"
	"github.com/neurodetect-server/internal/service"
)

// handleSubmitAnalysis accepts a multipart recording upload plus patient
// fields and runs the submission pipeline.
func (s *Server) handleSubmitAnalysis(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a recording file is required"})
		return
	}

	age := 0
	if raw := c.PostForm("patient_age"); raw != "" {
		age, err = strconv.Atoi(raw)
		if err != nil || age < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "patient_age must be a non-negative integer"})
			return
		}
	}

	info := domain.PatientInfo{
		Name:      c.PostForm("patient_name"),
		Age:       age,
		MedicalID: c.PostForm("medical_id"),
		Notes:     c.PostForm("notes"),
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read the uploaded file"})
		return
	}
	defer file.Close()

	record, err := s.orchestrator.Submit(c.Request.Context(), fileHeader.Filename, file, info)
	if err != nil {
		s.writeSubmissionError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// writeSubmissionError maps pipeline errors onto HTTP statuses: validation
// to 400, a busy orchestrator to 409, classification failures to 502
// (carrying the upstream status in the body), storage to 500.
func (s *Server) writeSubmissionError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
		return
	}
	if errors.Is(err, service.ErrSubmissionInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	var cerr *domain.ClassificationError
	if errors.As(err, &cerr) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":           cerr.Message,
			"upstream_status": cerr.StatusCode,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "submission failed"})
}

// handleLatestResult returns the current analysis or 404 when the slot is
// empty.
func (s *Server) handleLatestResult(c *gin.Context) {
	record, err := s.results.Latest(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNoAnalysis) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no analysis available"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load the latest analysis"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// handleListPatients returns the filtered patient list.
func (s *Server) handleListPatients(c *gin.Context) {
	records, err := s.queryPatients(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not query patients"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"patients": records,
		"count":    len(records),
	})
}

// handleDeletePatient removes one record; deleting an absent id succeeds.
func (s *Server) handleDeletePatient(c *gin.Context) {
	id := c.Param("id")
	if err := s.registry.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete patient"})
		return
	}
	s.reports.invalidate()
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// handleExportPatients returns the filtered patient list as a versioned
// download document.
func (s *Server) handleExportPatients(c *gin.Context) {
	records, err := s.queryPatients(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not query patients"})
		return
	}
	export := service.BuildPatientListExport(records, time.Now())
	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename="patients_%s.json"`, export.ExportedAt.Format("20060102_150405")))
	c.JSON(http.StatusOK, export)
}

// handleReport serves the aggregate report through a short-TTL cache that
// successful submissions and deletions invalidate.
func (s *Server) handleReport(c *gin.Context) {
	if report, ok := s.reports.get(); ok {
		c.JSON(http.StatusOK, report)
		return
	}

	records, err := s.registry.Query(c.Request.Context(), "", domain.StatusFilterAll)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute report"})
		return
	}
	report := service.ComputeReport(records, time.Now())
	s.reports.put(report)
	c.JSON(http.StatusOK, report)
}

// handleExportAnalysis returns the current analysis shaped for download.
func (s *Server) handleExportAnalysis(c *gin.Context) {
	record, err := s.results.Latest(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNoAnalysis) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no analysis available"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load the latest analysis"})
		return
	}
	export := service.BuildAnalysisExport(record)
	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename="analysis_%s.json"`, export.Timestamp.Format("20060102_150405")))
	c.JSON(http.StatusOK, export)
}

func (s *Server) queryPatients(c *gin.Context) ([]*domain.PatientRecord, error) {
	search := c.Query("search")
	status := c.DefaultQuery("status", domain.StatusFilterAll)
	return s.registry.Query(c.Request.Context(), search, status)
}
