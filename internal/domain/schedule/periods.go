// Package schedule materializes compliance reporting periods from a
// monitoring configuration.
package schedule

import (
	"fmt"
	"time"

	"github.com/ecoregula/permitflow/internal/domain/entity"
	"github.com/ecoregula/permitflow/internal/domain/workflow"
)

// PeriodsForYear produces the full set of reporting periods covering one
// calendar year. Generation anchors to the calendar year regardless of the
// configuration's start month: a semiannual configuration starting in March
// still yields Jan-Jun and Jul-Dec. Period 1 opens; later windows stay
// closed until their turn.
func PeriodsForYear(freq entity.Frequency, year int) ([]entity.CompliancePeriod, error) {
	if !freq.IsValid() {
		return nil, fmt.Errorf("unknown frequency %q", freq)
	}

	months := freq.MonthsPerPeriod()
	count := freq.PeriodsPerYear()

	periods := make([]entity.CompliancePeriod, 0, count)
	for i := 0; i < count; i++ {
		startMonth := time.Month(i*months + 1)
		start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
		// End is the last day of the period's final month.
		end := start.AddDate(0, months, 0).AddDate(0, 0, -1)

		state := workflow.PeriodClosed
		if i == 0 {
			state = workflow.PeriodOpen
		}

		periods = append(periods, entity.CompliancePeriod{
			Sequence:  i + 1,
			StartDate: start,
			EndDate:   end,
			State:     state,
		})
	}

	return periods, nil
}

// AnchorYear derives the generation year from a configuration start date
func AnchorYear(startDate time.Time) int {
	return startDate.Year()
}
