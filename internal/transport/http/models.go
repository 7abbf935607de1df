package httptransport

import (
	"time"

	"github.com/google/uuid"

	"warden/internal/punishment/models"
	"warden/internal/verification"
)

// VerifyRequest is the body of POST /v1/verifications.
type VerifyRequest struct {
	Name    string `json:"name"`
	UUID    string `json:"uuid"`
	USID    string `json:"usid"`
	Address string `json:"address"`
}

type VerifyResponse struct {
	Status          verification.Status `json:"status"`
	Reason          string              `json:"reason,omitempty"`
	DurationSeconds int64               `json:"duration_seconds,omitempty"`
}

func toVerifyResponse(r verification.Result) VerifyResponse {
	return VerifyResponse{
		Status:          r.Status,
		Reason:          r.Reason,
		DurationSeconds: int64(r.Duration / time.Second),
	}
}

type AddressResponse struct {
	Address string `json:"address"`
	Listed  bool   `json:"listed"`
	Source  string `json:"source,omitempty"`
}

type ProcessorResponse struct {
	ID       string `json:"id"`
	Priority string `json:"priority"`
	FailOpen bool   `json:"fail_open"`
}

type IssuePunishmentRequest struct {
	Address  string `json:"address"`
	UUID     string `json:"uuid"`
	Reason   string `json:"reason"`
	Type     string `json:"type"`
	Duration string `json:"duration"`
}

type PardonRequest struct {
	Reason string `json:"reason"`
}

type PardonResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

type PunishmentResponse struct {
	ID              uuid.UUID       `json:"id"`
	Address         string          `json:"address"`
	UUID            string          `json:"uuid,omitempty"`
	Reason          string          `json:"reason"`
	Type            string          `json:"type"`
	Duration        string          `json:"duration"`
	DurationSeconds *int64          `json:"duration_seconds"`
	CreatedAt       time.Time       `json:"created_at"`
	Pardon          *PardonResponse `json:"pardon,omitempty"`
}

func toPunishmentResponse(p *models.Punishment) PunishmentResponse {
	resp := PunishmentResponse{
		ID:        p.ID,
		Address:   p.Target.Address.String(),
		UUID:      p.Target.UUID,
		Reason:    p.Reason,
		Type:      string(p.Type),
		Duration:  models.FormatDuration(p.Duration),
		CreatedAt: p.CreatedAt,
	}
	if p.Duration != nil {
		secs := int64(*p.Duration / time.Second)
		resp.DurationSeconds = &secs
	}
	if p.Pardon != nil {
		resp.Pardon = &PardonResponse{Timestamp: p.Pardon.Timestamp, Reason: p.Pardon.Reason}
	}
	return resp
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Failing map[string]string `json:"failing,omitempty"`
}
