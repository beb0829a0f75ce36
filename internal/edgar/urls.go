package edgar

import (
	"fmt"
	"regexp"
	"strings"

	"cloud.google.com/go/civil"
)

// MaxRequestsPerSecond is the request ceiling EDGAR enforces per client.
const MaxRequestsPerSecond = 10

// DefaultBaseURL is the public EDGAR host.
const DefaultBaseURL = "https://www.sec.gov"

var accessionPattern = regexp.MustCompile(`[0-9]{10}-[0-9]{2}-[0-9]{6}`)

// Quarter returns the fiscal quarter (1-4) of d.
func Quarter(d civil.Date) int {
	return (int(d.Month)-1)/3 + 1
}

// IndexURL returns the daily master index location for d.
func IndexURL(baseURL string, d civil.Date) string {
	return fmt.Sprintf("%s/Archives/edgar/daily-index/%d/QTR%d/master.%s.idx",
		strings.TrimRight(baseURL, "/"), d.Year, Quarter(d), CompactDate(d))
}

// DocumentURL resolves an index entry path against the Archives root.
func DocumentURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + "/Archives/" + strings.TrimLeft(path, "/")
}

// AccessionNumber returns the accession number embedded in a filing URL.
func AccessionNumber(rawURL string) (string, bool) {
	acc := accessionPattern.FindString(rawURL)
	return acc, acc != ""
}

// FilingIndexURL returns the human-facing filing index page for an accession number.
func FilingIndexURL(baseURL, ownerCIK, accessNo string) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s-index.html",
		strings.TrimRight(baseURL, "/"), ownerCIK, strings.ReplaceAll(accessNo, "-", ""), accessNo)
}

// CompactDate formats d as YYYYMMDD.
func CompactDate(d civil.Date) string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}
