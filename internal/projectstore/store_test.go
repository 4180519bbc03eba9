package projectstore

import (
	"testing"
	"time"

	"github.com/adb-analytics/apiserver/internal/analytics"
	"github.com/adb-analytics/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(name string) types.Project {
	return types.Project{
		ID:          name + "-id",
		ProjectName: name,
		Country:     "Nepal",
		Budget:      500000,
		StartDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Description: "Canal rehabilitation project",
	}
}

func TestAddThenList(t *testing.T) {
	s := New()
	s.Add(sample("first"))
	rec := sample("second")
	s.Add(rec)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].ProjectName)
	assert.Equal(t, rec, list[len(list)-1])
	assert.Equal(t, 2, s.Len())
}

func TestListReturnsCopy(t *testing.T) {
	s := New()
	s.Add(sample("first"))

	list := s.List()
	list[0].ProjectName = "mutated"

	assert.Equal(t, "first", s.List()[0].ProjectName)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	s := New()

	var summaries []analytics.Summary
	cancel := s.Subscribe(func(projects []types.Project) {
		summaries = append(summaries, analytics.Summarize(projects))
	})

	s.Add(sample("a"))
	s.Add(sample("b"))
	require.Len(t, summaries, 2)
	assert.Equal(t, 1, summaries[0].TotalProjects)
	assert.Equal(t, 1000000.0, summaries[1].TotalBudget)

	cancel()
	cancel()
	s.Add(sample("c"))
	assert.Len(t, summaries, 2)
}

func TestReset(t *testing.T) {
	s := New()
	calls := 0
	s.Subscribe(func(projects []types.Project) {
		calls++
		if calls == 2 {
			assert.Empty(t, projects)
		}
	})

	s.Add(sample("a"))
	s.Reset()
	s.Reset()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 2, calls)
}
