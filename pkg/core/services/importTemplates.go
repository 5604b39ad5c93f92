package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/core/recurrence"
)

// TemplateSpec is one entry of a template import file
type TemplateSpec struct {
	Title     string   `yaml:"title" validate:"required"`
	StartTime string   `yaml:"startTime" validate:"required"`
	EndTime   string   `yaml:"endTime" validate:"required"`
	ByDay     []string `yaml:"byDay,omitempty" validate:"omitempty,dive,oneof=SU MO TU WE TH FR SA"`
	RRule     string   `yaml:"rrule,omitempty"`
	Capacity  int      `yaml:"capacity,omitempty" validate:"omitempty,min=1"`
	Active    *bool    `yaml:"active,omitempty"`
}

// TemplateFile is the document read by ImportTemplates
type TemplateFile struct {
	Templates []TemplateSpec `yaml:"templates" validate:"required,min=1,dive"`
}

// TemplateStore defines the database operations needed
type TemplateStore interface {
	UpsertTemplate(ctx context.Context, t model.ShiftTemplate) (*model.ShiftTemplate, error)
}

// ImportResult lists saved templates and non-fatal problems found on the way
type ImportResult struct {
	Templates []model.ShiftTemplate
	Warnings  []string
}

var validate = validator.New()

// LoadTemplateFile reads and validates a template import file
func LoadTemplateFile(path string) (*TemplateFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}
	return ParseTemplateFile(data)
}

// ParseTemplateFile parses and validates template YAML
func ParseTemplateFile(data []byte) (*TemplateFile, error) {
	var file TemplateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse template file: %w", err)
	}
	if err := validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("template file validation failed: %w", err)
	}
	for i, spec := range file.Templates {
		for _, tod := range []string{spec.StartTime, spec.EndTime} {
			if _, err := time.Parse("15:04", tod); err != nil {
				return nil, fmt.Errorf("templates[%d] %q: %w", i, spec.Title, model.ErrInvalidTimeOfDay)
			}
		}
	}
	return &file, nil
}

// ImportTemplates normalizes each template's recurrence and upserts it by title.
// Malformed legacy RRULE text is kept (it matches every day) and reported as a warning.
func ImportTemplates(ctx context.Context, database TemplateStore, logger *zap.Logger, file *TemplateFile, defaultCapacity int) (*ImportResult, error) {
	result := &ImportResult{}

	for i, spec := range file.Templates {
		rule, err := recurrence.FromFields(spec.ByDay, spec.RRule)
		if err != nil {
			return result, fmt.Errorf("templates[%d] %q: %w", i, spec.Title, err)
		}

		if len(spec.ByDay) == 0 && spec.RRule != "" {
			if err := recurrence.Validate(spec.RRule); err != nil {
				warning := fmt.Sprintf("%s: rrule %q is malformed and will match every day", spec.Title, spec.RRule)
				logger.Warn("Malformed rrule in template import",
					zap.String("title", spec.Title),
					zap.String("rrule", spec.RRule),
					zap.Error(err))
				result.Warnings = append(result.Warnings, warning)
			}
		}

		capacity := spec.Capacity
		if capacity == 0 {
			capacity = defaultCapacity
		}
		active := true
		if spec.Active != nil {
			active = *spec.Active
		}

		saved, err := database.UpsertTemplate(ctx, model.ShiftTemplate{
			Title:      spec.Title,
			StartTime:  spec.StartTime,
			EndTime:    spec.EndTime,
			Recurrence: rule,
			Capacity:   capacity,
			Active:     active,
		})
		if err != nil {
			return result, fmt.Errorf("failed to save template %q: %w", spec.Title, err)
		}

		logger.Debug("Imported template",
			zap.Int64("template_id", saved.ID),
			zap.String("title", saved.Title),
			zap.String("recurrence", string(saved.Recurrence.Kind)))
		result.Templates = append(result.Templates, *saved)
	}

	logger.Info("Template import completed",
		zap.Int("templates", len(result.Templates)),
		zap.Int("warnings", len(result.Warnings)))

	return result, nil
}
