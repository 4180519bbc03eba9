// Package analytics derives summary statistics and chart series from a set
// of projects. All functions are pure and never modify their input.
package analytics

import (
	"sort"
	"time"

	"github.com/adb-analytics/apiserver/types"
)

// Summary is the derived view over a project set.
type Summary struct {
	TotalProjects       int            `json:"totalProjects"`
	TotalBudget         float64        `json:"totalBudget"`
	AverageBudget       float64        `json:"averageBudget"`
	CountryDistribution map[string]int `json:"countryDistribution"`
	CountriesCovered    int            `json:"countriesCovered"`
}

// Point is one labelled value in a bar or pie series.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Span is one bar of the timeline series.
type Span struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Charts bundles every chart series for a project set.
type Charts struct {
	Budget    []Point `json:"budget"`
	Countries []Point `json:"countries"`
	Timeline  []Span  `json:"timeline"`
}

func TotalBudget(projects []types.Project) float64 {
	var total float64
	for _, p := range projects {
		total += p.Budget
	}
	return total
}

// AverageBudget is 0 for an empty set.
func AverageBudget(projects []types.Project) float64 {
	if len(projects) == 0 {
		return 0
	}
	return TotalBudget(projects) / float64(len(projects))
}

// CountryDistribution counts projects per country. Countries without
// projects are absent from the map.
func CountryDistribution(projects []types.Project) map[string]int {
	dist := make(map[string]int)
	for _, p := range projects {
		dist[p.Country]++
	}
	return dist
}

func CountriesCovered(projects []types.Project) int {
	return len(CountryDistribution(projects))
}

func Summarize(projects []types.Project) Summary {
	dist := CountryDistribution(projects)
	return Summary{
		TotalProjects:       len(projects),
		TotalBudget:         TotalBudget(projects),
		AverageBudget:       AverageBudget(projects),
		CountryDistribution: dist,
		CountriesCovered:    len(dist),
	}
}

// BudgetSeries pairs each project name with its budget, in input order.
func BudgetSeries(projects []types.Project) []Point {
	series := make([]Point, 0, len(projects))
	for _, p := range projects {
		series = append(series, Point{Label: p.ProjectName, Value: p.Budget})
	}
	return series
}

// CountrySeries is the pie series of the country distribution, ordered by
// country name so repeated calls render identically.
func CountrySeries(projects []types.Project) []Point {
	dist := CountryDistribution(projects)
	countries := make([]string, 0, len(dist))
	for country := range dist {
		countries = append(countries, country)
	}
	sort.Strings(countries)

	series := make([]Point, 0, len(countries))
	for _, country := range countries {
		series = append(series, Point{Label: country, Value: float64(dist[country])})
	}
	return series
}

// TimelineSeries orders projects by start date. Ties keep input order.
func TimelineSeries(projects []types.Project) []Span {
	sorted := make([]types.Project, len(projects))
	copy(sorted, projects)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartDate.Before(sorted[j].StartDate)
	})

	series := make([]Span, 0, len(sorted))
	for _, p := range sorted {
		series = append(series, Span{Label: p.ProjectName, Start: p.StartDate, End: p.EndDate})
	}
	return series
}

func BuildCharts(projects []types.Project) Charts {
	return Charts{
		Budget:    BudgetSeries(projects),
		Countries: CountrySeries(projects),
		Timeline:  TimelineSeries(projects),
	}
}
