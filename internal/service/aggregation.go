package service

import (
	"time"

	"github.com/neurodetect-server/internal/domain"
)

// recentActivityWindow is the trailing period the report's activity section
// covers, keyed on each record's last test date.
const recentActivityWindow = 7 * 24 * time.Hour

// StatusCount is one row of a status distribution.
type StatusCount struct {
	Status     domain.ClassificationKind `json:"status"`
	Count      int                       `json:"count"`
	Percentage float64                   `json:"percentage"`
}

// Summary holds the headline counters for the dashboard.
type Summary struct {
	TotalPatients          int `json:"total_patients"`
	NormalCount            int `json:"normal_count"`
	SeizureCount           int `json:"seizure_count"`
	NeurodegenerationCount int `json:"neurodegeneration_count"`
}

// Report is the aggregate document behind the reports view: headline
// counters, full distribution and trailing-week activity.
type Report struct {
	GeneratedAt    time.Time     `json:"generated_at"`
	Summary        Summary       `json:"summary"`
	Distribution   []StatusCount `json:"distribution"`
	RecentActivity struct {
		WindowDays int `json:"window_days"`
		TestCount  int `json:"test_count"`
	} `json:"recent_activity"`
}

// reportedStatuses fixes the distribution row order.
var reportedStatuses = []domain.ClassificationKind{
	domain.KindNormal,
	domain.KindSeizure,
	domain.KindNeurodegeneration,
}

// ComputeDistribution counts records per status and derives percentages.
// An empty input yields rows with zero counts and zero percentages.
func ComputeDistribution(records []*domain.PatientRecord) []StatusCount {
	counts := make(map[domain.ClassificationKind]int, len(reportedStatuses))
	for _, rec := range records {
		counts[rec.Status]++
	}

	total := len(records)
	rows := make([]StatusCount, 0, len(reportedStatuses))
	for _, status := range reportedStatuses {
		row := StatusCount{Status: status, Count: counts[status]}
		if total > 0 {
			row.Percentage = float64(row.Count) / float64(total) * 100
		}
		rows = append(rows, row)
	}
	return rows
}

// ComputeSummary derives the headline counters from the registry contents.
func ComputeSummary(records []*domain.PatientRecord) Summary {
	s := Summary{TotalPatients: len(records)}
	for _, rec := range records {
		switch rec.Status {
		case domain.KindNormal:
			s.NormalCount++
		case domain.KindSeizure:
			s.SeizureCount++
		case domain.KindNeurodegeneration:
			s.NeurodegenerationCount++
		}
	}
	return s
}

// ComputeReport assembles the aggregate report. All values are recomputed
// from the given records; nothing is cached at this layer.
func ComputeReport(records []*domain.PatientRecord, now time.Time) *Report {
	report := &Report{
		GeneratedAt:  now.UTC(),
		Summary:      ComputeSummary(records),
		Distribution: ComputeDistribution(records),
	}
	report.RecentActivity.WindowDays = int(recentActivityWindow.Hours() / 24)

	cutoff := now.Add(-recentActivityWindow)
	for _, rec := range records {
		if rec.LastTestDate.After(cutoff) {
			report.RecentActivity.TestCount++
		}
	}
	return report
}
