package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoregula/permitflow/internal/domain/entity"
	"github.com/ecoregula/permitflow/internal/domain/workflow"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodsForYear_Semiannual(t *testing.T) {
	periods, err := PeriodsForYear(entity.FrequencySemiannual, 2024)
	require.NoError(t, err)
	require.Len(t, periods, 2)

	assert.Equal(t, 1, periods[0].Sequence)
	assert.Equal(t, date(2024, time.January, 1), periods[0].StartDate)
	assert.Equal(t, date(2024, time.June, 30), periods[0].EndDate)
	assert.Equal(t, workflow.PeriodOpen, periods[0].State)

	assert.Equal(t, 2, periods[1].Sequence)
	assert.Equal(t, date(2024, time.July, 1), periods[1].StartDate)
	assert.Equal(t, date(2024, time.December, 31), periods[1].EndDate)
	assert.Equal(t, workflow.PeriodClosed, periods[1].State)
}

func TestPeriodsForYear_Annual(t *testing.T) {
	periods, err := PeriodsForYear(entity.FrequencyAnnual, 2025)
	require.NoError(t, err)
	require.Len(t, periods, 1)

	assert.Equal(t, date(2025, time.January, 1), periods[0].StartDate)
	assert.Equal(t, date(2025, time.December, 31), periods[0].EndDate)
	assert.Equal(t, workflow.PeriodOpen, periods[0].State)
}

func TestPeriodsForYear_Quarterly(t *testing.T) {
	periods, err := PeriodsForYear(entity.FrequencyQuarterly, 2024)
	require.NoError(t, err)
	require.Len(t, periods, 4)

	wantStarts := []time.Time{
		date(2024, time.January, 1),
		date(2024, time.April, 1),
		date(2024, time.July, 1),
		date(2024, time.October, 1),
	}
	wantEnds := []time.Time{
		date(2024, time.March, 31),
		date(2024, time.June, 30),
		date(2024, time.September, 30),
		date(2024, time.December, 31),
	}

	for i, p := range periods {
		assert.Equal(t, i+1, p.Sequence)
		assert.Equal(t, wantStarts[i], p.StartDate)
		assert.Equal(t, wantEnds[i], p.EndDate)
	}
}

func TestPeriodsForYear_Contiguous(t *testing.T) {
	periods, err := PeriodsForYear(entity.FrequencyQuarterly, 2023)
	require.NoError(t, err)

	for i := 1; i < len(periods); i++ {
		assert.Equal(t, periods[i-1].EndDate.AddDate(0, 0, 1), periods[i].StartDate,
			"period %d must start the day after period %d ends", i+1, i)
	}
}

func TestPeriodsForYear_UnknownFrequency(t *testing.T) {
	_, err := PeriodsForYear(entity.Frequency("MONTHLY"), 2024)
	assert.Error(t, err)
}

func TestAnchorYear(t *testing.T) {
	assert.Equal(t, 2024, AnchorYear(date(2024, time.March, 15)))
	assert.Equal(t, 2026, AnchorYear(date(2026, time.December, 31)))
}
