package edgar

import (
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func TestQuarterMatchesIndexURL(t *testing.T) {
	t.Parallel()

	for month := time.January; month <= time.December; month++ {
		d := civil.Date{Year: 2024, Month: month, Day: 15}
		want := ((int(month) - 1) / 3) + 1
		assert.Equal(t, want, Quarter(d), "month %s", month)
		assert.Contains(t, IndexURL(DefaultBaseURL, d), fmt.Sprintf("/QTR%d/", want))
	}
}

func TestIndexURL(t *testing.T) {
	t.Parallel()

	d := civil.Date{Year: 2025, Month: time.February, Day: 13}
	assert.Equal(t,
		"https://www.sec.gov/Archives/edgar/daily-index/2025/QTR1/master.20250213.idx",
		IndexURL("https://www.sec.gov/", d))
}

func TestDocumentURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"https://www.sec.gov/Archives/edgar/data/320193/0000320193-25-000010.txt",
		DocumentURL(DefaultBaseURL, "edgar/data/320193/0000320193-25-000010.txt"))
}

func TestAccessionNumber(t *testing.T) {
	t.Parallel()

	acc, ok := AccessionNumber("https://www.sec.gov/Archives/edgar/data/320193/0000320193-25-000010.txt")
	assert.True(t, ok)
	assert.Equal(t, "0000320193-25-000010", acc)

	_, ok = AccessionNumber("https://www.sec.gov/Archives/edgar/data/320193/readme.txt")
	assert.False(t, ok)
}

func TestFilingIndexURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"https://www.sec.gov/Archives/edgar/data/0001214156/000032019325000010/0000320193-25-000010-index.html",
		FilingIndexURL(DefaultBaseURL, "0001214156", "0000320193-25-000010"))
}
