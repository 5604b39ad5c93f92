package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/core/recurrence"
)

// mockTemplateStore implements TemplateStore
type mockTemplateStore struct {
	saved []model.ShiftTemplate
	err   error
}

func (m *mockTemplateStore) UpsertTemplate(ctx context.Context, t model.ShiftTemplate) (*model.ShiftTemplate, error) {
	if m.err != nil {
		return nil, m.err
	}
	t.ID = int64(len(m.saved) + 1)
	m.saved = append(m.saved, t)
	return &t, nil
}

const templateYAML = `
templates:
  - title: Monday Evening
    startTime: "18:00"
    endTime: "21:00"
    byDay: [MO]
  - title: Monthly Deep Clean
    startTime: "10:00"
    endTime: "13:00"
    rrule: FREQ=MONTHLY;BYMONTHDAY=1
    capacity: 3
  - title: Legacy Sunday
    startTime: "09:00"
    endTime: "12:00"
    rrule: "FREQ=SOMETIMES"
    active: false
`

func TestImportTemplates(t *testing.T) {
	file, err := ParseTemplateFile([]byte(templateYAML))
	require.NoError(t, err)

	store := &mockTemplateStore{}
	result, err := ImportTemplates(context.Background(), store, zap.NewNop(), file, 6)
	require.NoError(t, err)

	require.Len(t, result.Templates, 3)

	monday := result.Templates[0]
	assert.Equal(t, recurrence.KindWeekdays, monday.Recurrence.Kind)
	assert.True(t, monday.Recurrence.Weekdays.Has(time.Monday))
	assert.Equal(t, 6, monday.Capacity)
	assert.True(t, monday.Active)

	monthly := result.Templates[1]
	assert.Equal(t, recurrence.KindMonthly, monthly.Recurrence.Kind)
	assert.Equal(t, []int{1}, monthly.Recurrence.MonthDays)
	assert.Equal(t, 3, monthly.Capacity)

	legacy := result.Templates[2]
	assert.Equal(t, recurrence.KindDaily, legacy.Recurrence.Kind)
	assert.False(t, legacy.Active)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "Legacy Sunday")
}

func TestParseTemplateFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no templates", "templates: []"},
		{"missing title", "templates:\n  - startTime: \"18:00\"\n    endTime: \"21:00\""},
		{"bad weekday", "templates:\n  - title: X\n    startTime: \"18:00\"\n    endTime: \"21:00\"\n    byDay: [XX]"},
		{"bad time", "templates:\n  - title: X\n    startTime: \"6pm\"\n    endTime: \"21:00\""},
		{"not yaml", "templates: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplateFile([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseTemplateFile_BadTimeIsTyped(t *testing.T) {
	_, err := ParseTemplateFile([]byte("templates:\n  - title: X\n    startTime: \"6pm\"\n    endTime: \"21:00\""))
	assert.ErrorIs(t, err, model.ErrInvalidTimeOfDay)
}

func TestImportTemplates_StoreError(t *testing.T) {
	file, err := ParseTemplateFile([]byte(templateYAML))
	require.NoError(t, err)

	_, err = ImportTemplates(context.Background(), &mockTemplateStore{err: errors.New("db down")}, zap.NewNop(), file, 6)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Monday Evening")
}
