package handler

import (
	"presente/internal/enrollment/models"
	id "presente/pkg/domain"
)

// AssignmentResponse is the wire shape of a batch assignment outcome. The
// resolved period is echoed back so callers relying on the default see what
// was used.
type AssignmentResponse struct {
	Period     string             `json:"period"`
	Registered []string           `json:"registered"`
	Omitted    []OmissionResponse `json:"omitted"`
}

type OmissionResponse struct {
	GroupID string `json:"group_id"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail,omitempty"`
}

func FromAssignment(result *models.AssignmentResult, period id.Period) *AssignmentResponse {
	registered := make([]string, 0, len(result.Registered))
	for _, groupID := range result.Registered {
		registered = append(registered, groupID.String())
	}
	omitted := make([]OmissionResponse, 0, len(result.Omitted))
	for _, omission := range result.Omitted {
		omitted = append(omitted, OmissionResponse{
			GroupID: omission.GroupID.String(),
			Reason:  string(omission.Reason),
			Detail:  omission.Detail,
		})
	}
	return &AssignmentResponse{
		Period:     string(period),
		Registered: registered,
		Omitted:    omitted,
	}
}
