package validation

import (
	"strings"

	"github.com/adb-analytics/apiserver/types"
)

// ProjectInput is the raw project form as submitted by a client.
type ProjectInput struct {
	ProjectName string  `json:"projectName" validate:"required,min=3"`
	Country     string  `json:"country" validate:"required,country"`
	Budget      float64 `json:"budget" validate:"gt=0"`
	StartDate   string  `json:"startDate" validate:"required,date"`
	EndDate     string  `json:"endDate" validate:"required,date"`
	Description string  `json:"description" validate:"required,min=10"`
}

var projectMessages = map[string]map[string]string{
	"projectName": {"": "Project name must be at least 3 characters"},
	"country": {
		"required": "Please select a country",
		"country":  "Please select a valid country",
	},
	"budget": {"": "Budget must be a positive number"},
	"startDate": {
		"required": "Start date is required",
		"date":     "Start date is invalid",
	},
	"endDate": {
		"required": "End date is required",
		"date":     "End date is invalid",
	},
	"description": {"": "Description must be at least 10 characters"},
}

// ValidateProject checks a project form. The returned error, when non-nil,
// is an Errors value covering every failing field.
func ValidateProject(in ProjectInput) (types.ProjectDraft, error) {
	in.ProjectName = strings.TrimSpace(in.ProjectName)
	in.Country = strings.TrimSpace(in.Country)
	in.StartDate = strings.TrimSpace(in.StartDate)
	in.EndDate = strings.TrimSpace(in.EndDate)
	in.Description = strings.TrimSpace(in.Description)

	errs := check(in, projectMessages)
	if errs == nil {
		errs = Errors{}
	}

	_, startBad := errs["startDate"]
	_, endBad := errs["endDate"]
	var draft types.ProjectDraft
	if !startBad && !endBad {
		start, _ := ParseDate(in.StartDate)
		end, _ := ParseDate(in.EndDate)
		if !start.Before(end) {
			errs["endDate"] = "End date must be after start date"
		}
		draft.StartDate = start
		draft.EndDate = end
	}

	if err := orNil(errs); err != nil {
		return types.ProjectDraft{}, err
	}

	draft.ProjectName = in.ProjectName
	draft.Country = in.Country
	draft.Budget = in.Budget
	draft.Description = in.Description
	return draft, nil
}
