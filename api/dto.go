/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  internal domain model from the external API contract.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO: Response types returned to clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/northwind/sales-engine/sales"
)

// TriggerRequest asks for an on-demand ingestion of a server-side file.
type TriggerRequest struct {
	FilePath string `json:"filePath"`
}

// TriggerResponse acknowledges a queued ingestion job.
type TriggerResponse struct {
	Message string `json:"message"`
	File    string `json:"file"`
	JobID   string `json:"jobId"`
}

// RefreshLogDTO represents one ingestion run in API responses.
type RefreshLogDTO struct {
	ID         int64  `json:"id"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toRefreshLogDTO(l sales.RefreshLog) RefreshLogDTO {
	dto := RefreshLogDTO{
		ID:        l.ID,
		StartedAt: l.StartedAt.Format(timeFormat),
		Status:    string(l.Status),
		Message:   l.Message,
	}
	if l.FinishedAt != nil {
		dto.FinishedAt = l.FinishedAt.Format(timeFormat)
	}
	return dto
}
