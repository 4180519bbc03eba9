package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/adb-analytics/apiserver/internal/analytics"
	"github.com/adb-analytics/apiserver/types"
)

func TestPrintAnalysis(t *testing.T) {
	projects := []types.Project{
		{ProjectName: "Irrigation", Country: "Nepal", Budget: 1000000,
			StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
	}
	var buf bytes.Buffer
	printAnalysis(&buf, analytics.Summarize(projects), analytics.BuildCharts(projects))

	out := buf.String()
	assert.Contains(t, out, "Projects:          1")
	assert.Contains(t, out, "Average budget:    1000000.00")
	assert.Contains(t, out, "Nepal")
	assert.Contains(t, out, "2024-12-31")
}

func TestPrintProjectsEmpty(t *testing.T) {
	var buf bytes.Buffer
	printProjects(&buf, nil)
	assert.Equal(t, "no projects yet\n", buf.String())
}
