package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	PATCH(path string, body any) error
	DELETE(path string) error
	Day(n int) string
	GetResponseField(field string) (any, error)
	GetLastResponseBody() []byte
}

// RegisterSteps registers attendance registration, batch, update and query steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &attendanceSteps{tc: tc}

	ctx.Step(`^I register subject (\d+) for activity (\d+) on day (\d+)$`, steps.register)
	ctx.Step(`^I register subject (\d+) for activity (\d+) on day (\d+) as "([^"]*)"$`, steps.registerWithStatus)
	ctx.Step(`^I submit a batch for day (\d+):$`, steps.submitBatch)
	ctx.Step(`^I change the status of the remembered record to "([^"]*)"$`, steps.changeStatus)
	ctx.Step(`^I move the remembered record to day (\d+)$`, steps.moveRecord)
	ctx.Step(`^I delete the remembered record$`, steps.deleteRecord)
	ctx.Step(`^I fetch the remembered record$`, steps.fetchRecord)
	ctx.Step(`^I request the roster of activity (\d+) on day (\d+)$`, steps.requestRoster)
	ctx.Step(`^the roster should list (\d+) records?$`, steps.rosterShouldList)
	ctx.Step(`^I remember the record$`, steps.rememberRecord)
}

type attendanceSteps struct {
	tc       TestContext
	recordID int64
}

func (s *attendanceSteps) register(ctx context.Context, subjectID, activityID int64, day int) error {
	return s.registerWithStatus(ctx, subjectID, activityID, day, "")
}

func (s *attendanceSteps) registerWithStatus(_ context.Context, subjectID, activityID int64, day int, status string) error {
	body := map[string]any{
		"subject_id":  subjectID,
		"activity_id": activityID,
		"record_date": s.tc.Day(day),
	}
	if status != "" {
		body["status"] = status
	}
	return s.tc.POST("/attendance", body)
}

// submitBatch sends the table rows (subject_id, activity_id, status) as a
// batch dated on the given day.
func (s *attendanceSteps) submitBatch(_ context.Context, day int, table *godog.Table) error {
	if len(table.Rows) < 2 {
		return fmt.Errorf("batch table needs a header and at least one row")
	}
	header := table.Rows[0].Cells
	items := make([]map[string]any, 0, len(table.Rows)-1)
	for _, row := range table.Rows[1:] {
		item := map[string]any{"record_date": s.tc.Day(day)}
		for i, cell := range row.Cells {
			name := strings.TrimSpace(header[i].Value)
			if name == "subject_id" || name == "activity_id" {
				var n int64
				if _, err := fmt.Sscan(cell.Value, &n); err != nil {
					return fmt.Errorf("%s must be a number: %w", name, err)
				}
				item[name] = n
				continue
			}
			item[name] = cell.Value
		}
		items = append(items, item)
	}
	return s.tc.POST("/attendance/batch", items)
}

func (s *attendanceSteps) rememberRecord(context.Context) error {
	v, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	id, ok := v.(float64)
	if !ok {
		return fmt.Errorf("id is not a number: %v", v)
	}
	s.recordID = int64(id)
	return nil
}

func (s *attendanceSteps) changeStatus(_ context.Context, status string) error {
	return s.tc.PATCH(s.recordPath(), map[string]any{"status": status})
}

func (s *attendanceSteps) moveRecord(_ context.Context, day int) error {
	return s.tc.PATCH(s.recordPath(), map[string]any{"record_date": s.tc.Day(day)})
}

func (s *attendanceSteps) deleteRecord(context.Context) error {
	return s.tc.DELETE(s.recordPath())
}

func (s *attendanceSteps) fetchRecord(context.Context) error {
	return s.tc.GET(s.recordPath())
}

func (s *attendanceSteps) recordPath() string {
	return fmt.Sprintf("/attendance/%d", s.recordID)
}

func (s *attendanceSteps) requestRoster(_ context.Context, activityID int64, day int) error {
	return s.tc.GET(fmt.Sprintf("/activities/%d/attendance?date=%s", activityID, s.tc.Day(day)))
}

func (s *attendanceSteps) rosterShouldList(_ context.Context, expected int) error {
	var roster struct {
		Records []json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &roster); err != nil {
		return fmt.Errorf("decode roster: %w", err)
	}
	if len(roster.Records) != expected {
		return fmt.Errorf("expected %d roster records, got %d", expected, len(roster.Records))
	}
	return nil
}
