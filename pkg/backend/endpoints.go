package backend

import (
	"context"
)

// GetScheduleStarted hydrates the shift context for a phone number.
func (c *Client) GetScheduleStarted(ctx context.Context, phoneNumber string) (*ScheduleInfo, error) {
	payload := map[string]string{"phoneNumber": phoneNumber}

	var envelope scheduleEnvelope
	if err := c.call(ctx, EndpointGetSchedule, c.cfg.GetScheduleURL, payload, &envelope); err != nil {
		return nil, err
	}
	// some deployments wrap the result in a Lambda proxy body
	if envelope.Body != nil {
		return envelope.Body, nil
	}
	info := envelope.ScheduleInfo
	return &info, nil
}

// UpdateWorkScheduleResponse records the caregiver's presence answer,
// "confirmado" or "cancelado".
func (c *Client) UpdateWorkScheduleResponse(ctx context.Context, actionID, scheduleID, responseValue string) error {
	payload := map[string]string{
		"actionID":           actionID,
		"scheduleIdentifier": scheduleID,
		"responseValue":      responseValue,
	}
	return c.call(ctx, EndpointUpdateSchedule, c.cfg.UpdateScheduleURL, payload, nil)
}

// UpdateClinicalData commits a clinical record. The scenario is derived
// from what the record carries when not already set.
func (c *Client) UpdateClinicalData(ctx context.Context, record ClinicalRecord) error {
	if record.Scenario == "" {
		hasVitals := record.BloodPressure != nil || record.HeartRate != nil ||
			record.RespRate != nil || record.SaturationO2 != nil || record.Temperature != nil
		record.Scenario = DetermineScenario(hasVitals, record.ClinicalNote != "", false)
	}
	return c.call(ctx, EndpointUpdateClinical, c.cfg.UpdateClinicalURL, record, nil)
}

// UpdateReportSummary closes the shift report.
func (c *Client) UpdateReportSummary(ctx context.Context, payload SummaryPayload) error {
	return c.call(ctx, EndpointUpdateSummary, c.cfg.UpdateSummaryURL, payload, nil)
}

// GetNoteReport fetches the notes already attached to a report, returning
// the AI descriptions in order.
func (c *Client) GetNoteReport(ctx context.Context, reportID, reportDate string) ([]string, error) {
	payload := map[string]string{
		"reportID":   reportID,
		"reportDate": reportDate,
	}

	var response noteReportResponse
	if err := c.call(ctx, EndpointGetNoteReport, c.cfg.GetNoteReportURL, payload, &response); err != nil {
		return nil, err
	}

	notes := make([]string, 0, len(response.Notes))
	for _, note := range response.Notes {
		if note.NoteDescAI != "" {
			notes = append(notes, note.NoteDescAI)
		}
	}
	return notes, nil
}

// PostWorkflowWebhook pushes a note to the downstream workflow.
func (c *Client) PostWorkflowWebhook(ctx context.Context, note WebhookNote) error {
	return c.call(ctx, EndpointWorkflowWebhook, c.cfg.WebhookURL, note, nil)
}

// PostClinicalWebhook pushes a full clinical record to the downstream
// workflow alongside the updateClinicalData commit.
func (c *Client) PostClinicalWebhook(ctx context.Context, record ClinicalRecord) error {
	return c.call(ctx, EndpointWorkflowWebhook, c.cfg.WebhookURL, record, nil)
}
