package handler

import (
	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
)

// AssignGroupsRequest is the shared body for the two batch-assignment
// endpoints. Period is optional; empty means "current", resolved at the
// handler from the request clock.
type AssignGroupsRequest struct {
	GroupIDs []string `json:"group_ids"`
	Period   string   `json:"period,omitempty"`

	parsedGroupIDs []id.GroupID
	parsedPeriod   id.Period
}

func (r *AssignGroupsRequest) Prepare() error {
	if len(r.GroupIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "group_ids cannot be empty")
	}
	r.parsedGroupIDs = make([]id.GroupID, 0, len(r.GroupIDs))
	for _, raw := range r.GroupIDs {
		groupID, err := id.ParseGroupID(raw)
		if err != nil {
			return err
		}
		r.parsedGroupIDs = append(r.parsedGroupIDs, groupID)
	}
	if r.Period != "" {
		period, err := id.ParsePeriod(r.Period)
		if err != nil {
			return err
		}
		r.parsedPeriod = period
	}
	return nil
}

// ParsedGroupIDs preserves the input order; it is significant for
// subject-conflict tie-breaks.
func (r *AssignGroupsRequest) ParsedGroupIDs() []id.GroupID { return r.parsedGroupIDs }

// ParsedPeriod returns the explicit period, or zero when the caller wants the
// current one.
func (r *AssignGroupsRequest) ParsedPeriod() id.Period { return r.parsedPeriod }

// TransferRequest is the HTTP request body for POST /students/{studentID}/transfer.
// Period is required: the period-less variant was dropped deliberately.
type TransferRequest struct {
	FromGroupID string `json:"from_group_id"`
	ToGroupID   string `json:"to_group_id"`
	Period      string `json:"period"`

	parsedFrom   id.GroupID
	parsedTo     id.GroupID
	parsedPeriod id.Period
}

func (r *TransferRequest) Prepare() error {
	from, err := id.ParseGroupID(r.FromGroupID)
	if err != nil {
		return err
	}
	to, err := id.ParseGroupID(r.ToGroupID)
	if err != nil {
		return err
	}
	period, err := id.ParsePeriod(r.Period)
	if err != nil {
		return err
	}
	r.parsedFrom, r.parsedTo, r.parsedPeriod = from, to, period
	return nil
}

func (r *TransferRequest) ParsedFrom() id.GroupID  { return r.parsedFrom }
func (r *TransferRequest) ParsedTo() id.GroupID    { return r.parsedTo }
func (r *TransferRequest) ParsedPeriod() id.Period { return r.parsedPeriod }
