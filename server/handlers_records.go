// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/expensit/core"
	"github.com/poiesic/expensit/extract"
	"github.com/poiesic/expensit/ingest"
	"github.com/poiesic/expensit/normalize"
	"github.com/poiesic/expensit/storage"
	"github.com/shopspring/decimal"
)

// handleUploadReceipt feeds a multipart upload into the pipeline.
func (s *Server) handleUploadReceipt(c *gin.Context) {
	claims := claimsFrom(c)

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
		return
	}
	if header.Size > s.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil || int64(len(data)) > s.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	allowManual, _ := strconv.ParseBool(c.PostForm("allow_manual_review"))

	started := time.Now()
	result, err := s.pipeline.Ingest(c.Request.Context(), &ingest.Request{
		TenantID:          claims.TenantID,
		Source:            core.SourceWeb,
		ContentType:       header.Header.Get("Content-Type"),
		Bytes:             data,
		AllowManualReview: allowManual,
	})
	s.metrics.ingestDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		s.failUpload(c, err)
		return
	}

	s.metrics.ingestAttempts.WithLabelValues(result.Record.Status.String()).Inc()
	c.JSON(http.StatusCreated, gin.H{
		"record_id":       uint64(result.Record.Id),
		"status":          result.Record.Status.String(),
		"fields":          viewRecord(result.Record),
		"remaining_quota": result.RemainingQuota,
	})
}

// failUpload maps pipeline errors onto caller-actionable status codes.
func (s *Server) failUpload(c *gin.Context, err error) {
	var status int
	var outcome string

	switch {
	case errors.Is(err, normalize.ErrUnsupportedFormat):
		status, outcome = http.StatusUnsupportedMediaType, "unsupported_format"
	case errors.Is(err, normalize.ErrCorruptInput):
		status, outcome = http.StatusUnsupportedMediaType, "corrupt_input"
	case errors.Is(err, storage.ErrQuotaExceeded):
		status, outcome = http.StatusPaymentRequired, "quota_exceeded"
	case errors.Is(err, extract.ErrUnsupported):
		status, outcome = http.StatusUnprocessableEntity, "extraction_unsupported"
	case errors.Is(err, extract.ErrFailed):
		status, outcome = http.StatusBadGateway, "extraction_failed"
	case errors.Is(err, storage.ErrWriteFailed):
		status, outcome = http.StatusInternalServerError, "storage_failed"
	default:
		status, outcome = http.StatusInternalServerError, "error"
	}

	s.metrics.ingestAttempts.WithLabelValues(outcome).Inc()
	c.JSON(status, gin.H{"error": outcome})
}

// handleListRecords returns the caller's records, newest first.
func (s *Server) handleListRecords(c *gin.Context) {
	records, err := s.records.ListRecords(c.Request.Context(), claimsFrom(c).TenantID)
	if err != nil {
		s.logger.Error("record listing failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": viewRecords(records)})
}

type updateRecordRequest struct {
	Date       *string `json:"date"`
	VendorName *string `json:"vendor_name"`
	Amount     *string `json:"amount"`
	Category   *string `json:"category"`
}

// handleUpdateRecord applies field edits and clears the review flag.
func (s *Server) handleUpdateRecord(c *gin.Context) {
	recordID, ok := pathID(c)
	if !ok {
		return
	}

	var req updateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantID := claimsFrom(c).TenantID
	record, err := s.records.GetRecord(c.Request.Context(), tenantID, recordID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}

	if req.Date != nil {
		record.Date = *req.Date
	}
	if req.VendorName != nil {
		record.VendorName = *req.VendorName
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil || amount.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a non-negative decimal"})
			return
		}
		record.Amount = amount
	}
	if req.Category != nil {
		record.Category = *req.Category
	}
	// A human just looked at it
	record.Status = core.RecordStored

	if err := core.ValidateRecord(record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := s.records.UpdateRecord(c.Request.Context(), record)
	if err != nil {
		s.logger.Error("record update failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": viewRecord(updated)})
}

// handleDeleteRecord removes one record and refunds its quota slot.
func (s *Server) handleDeleteRecord(c *gin.Context) {
	recordID, ok := pathID(c)
	if !ok {
		return
	}

	tenantID := claimsFrom(c).TenantID
	if err := s.records.DeleteRecord(c.Request.Context(), tenantID, recordID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		s.logger.Error("record deletion failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deletion failed"})
		return
	}
	s.refundQuota(c, tenantID, 1)
	c.Status(http.StatusNoContent)
}

type deleteRecordsRequest struct {
	IDs []uint64 `json:"ids" binding:"required,min=1"`
}

// handleDeleteRecords removes a batch of records, refunding one slot per
// record actually deleted.
func (s *Server) handleDeleteRecords(c *gin.Context) {
	var req deleteRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ids := make([]core.ID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = core.ID(id)
	}

	tenantID := claimsFrom(c).TenantID
	deleted, err := s.records.DeleteRecords(c.Request.Context(), tenantID, ids...)
	if err != nil {
		s.logger.Error("bulk deletion failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deletion failed"})
		return
	}
	s.refundQuota(c, tenantID, deleted)
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// refundQuota returns slots for deleted records. Best-effort: a failed
// refund is logged and left to reconciliation, the deletion stands.
func (s *Server) refundQuota(c *gin.Context, tenantID core.ID, n int) {
	for i := 0; i < n; i++ {
		if err := s.tenants.ReleaseUsage(c.Request.Context(), tenantID); err != nil {
			s.logger.Error("quota refund failed", "tenant", tenantID, "err", err)
			return
		}
	}
}

// pathID parses the :id route parameter, answering 400 itself on bad
// input.
func pathID(c *gin.Context) (core.ID, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return 0, false
	}
	return core.ID(id), true
}
