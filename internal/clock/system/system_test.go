package system_test

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/insider-filings-crawler/internal/clock/system"
	"github.com/JakeFAU/insider-filings-crawler/internal/scheduler"
)

func TestNowIsCurrentUTC(t *testing.T) {
	t.Parallel()

	before := time.Now()
	got := system.New().Now()
	after := time.Now()

	assert.Equal(t, time.UTC, got.Location())
	assert.False(t, got.Before(before.Add(-time.Second)), "%v earlier than %v", got, before)
	assert.False(t, got.After(after.Add(time.Second)), "%v later than %v", got, after)
}

func TestNowConvertsToReferenceTimezone(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation(scheduler.ReferenceTimezone)
	require.NoError(t, err)

	now := system.New().Now()
	local := now.In(loc)
	assert.True(t, now.Equal(local))

	// New York runs four or five hours behind UTC, so its calendar day is the UTC
	// day or the one before.
	utcDay := civil.DateOf(now)
	nyDay := civil.DateOf(local)
	assert.Contains(t, []civil.Date{utcDay, utcDay.AddDays(-1)}, nyDay)

	_, offset := local.Zone()
	assert.Contains(t, []int{-5 * 3600, -4 * 3600}, offset)
}
