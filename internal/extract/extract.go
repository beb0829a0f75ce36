// Package extract turns EDGAR ownership documents into non-derivative insider
// transactions.
package extract

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/antchfx/xmlquery"

	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
)

var payloadPattern = regexp.MustCompile(`(?s)<\?xml[^>]*\?>.*</ownershipDocument>`)

var relationshipFlags = []struct {
	element string
	rel     edgar.Relationship
}{
	{"isDirector", edgar.RelationshipDirector},
	{"isOfficer", edgar.RelationshipOfficer},
	{"isTenPercentOwner", edgar.RelationshipTenPercentOwner},
	{"isOther", edgar.RelationshipOther},
}

// Extractor parses ownership documents. It is stateless and safe for concurrent use.
type Extractor struct {
	baseURL string
}

// New returns an Extractor that builds filing index links against baseURL.
func New(baseURL string) *Extractor {
	if baseURL == "" {
		baseURL = edgar.DefaultBaseURL
	}
	return &Extractor{baseURL: baseURL}
}

// Payload returns the embedded <?xml ...?> ... </ownershipDocument> block of body.
func Payload(body []byte) ([]byte, bool) {
	loc := payloadPattern.FindIndex(body)
	if loc == nil {
		return nil, false
	}
	return body[loc[0]:loc[1]], true
}

// Extract returns every non-derivative transaction in the document fetched from
// documentURL. A document with no non-derivative transactions yields
// edgar.ErrNoTransactions.
func (e *Extractor) Extract(documentURL string, body []byte) ([]edgar.FilingTransaction, error) {
	payload, ok := Payload(body)
	if !ok {
		return nil, fmt.Errorf("%w: %s: no ownership document payload", edgar.ErrExtract, documentURL)
	}
	accessNo, ok := edgar.AccessionNumber(documentURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s: no accession number in url", edgar.ErrExtract, documentURL)
	}

	doc, err := xmlquery.Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: parse xml: %w", edgar.ErrExtract, documentURL, err)
	}
	root := child(doc, "ownershipDocument")
	if root == nil {
		return nil, fmt.Errorf("%w: %s: missing ownershipDocument root", edgar.ErrExtract, documentURL)
	}

	header, err := e.readHeader(root, documentURL, accessNo)
	if err != nil {
		return nil, err
	}

	table := child(root, "nonDerivativeTable")
	if table == nil {
		return nil, fmt.Errorf("%s: %w", documentURL, edgar.ErrNoTransactions)
	}
	rows := children(table, "nonDerivativeTransaction")
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", documentURL, edgar.ErrNoTransactions)
	}

	txs := make([]edgar.FilingTransaction, 0, len(rows))
	for i, row := range rows {
		tx := header
		tx.Relationships = append([]edgar.Relationship(nil), header.Relationships...)

		rawDate, ok := Traverse(row, "transactionDate")
		if !ok {
			return nil, fmt.Errorf("%w: %s: transaction %d: missing transactionDate", edgar.ErrExtract, documentURL, i)
		}
		if tx.TransDate, err = date(rawDate); err != nil {
			return nil, fmt.Errorf("%w: %s: transaction %d: transactionDate: %w", edgar.ErrExtract, documentURL, i, err)
		}
		tx.SharesTraded = number(row, "transactionAmounts", "transactionShares")
		tx.AvgPrice = number(row, "transactionAmounts", "transactionPricePerShare")
		tx.Amount = finite(tx.SharesTraded * tx.AvgPrice)
		tx.SharesOwned = number(row, "postTransactionAmounts", "sharesOwnedFollowingTransaction")
		tx.ActionCode = text(row, "transactionAmounts", "transactionAcquiredDisposedCode")
		tx.OwnershipCode = text(row, "ownershipNature", "directOrIndirectOwnership")
		tx.TransCode = text(row, "transactionCoding", "transactionCode")
		txs = append(txs, tx)
	}
	return txs, nil
}

// readHeader collects the document-level fields shared by every transaction.
func (e *Extractor) readHeader(root *xmlquery.Node, documentURL, accessNo string) (edgar.FilingTransaction, error) {
	companyCIK, ok := Traverse(root, "issuer", "issuerCik")
	if !ok {
		return edgar.FilingTransaction{}, fmt.Errorf("%w: %s: missing issuerCik", edgar.ErrExtract, documentURL)
	}
	ownerCIK, ok := Traverse(root, "reportingOwner", "reportingOwnerId", "rptOwnerCik")
	if !ok {
		return edgar.FilingTransaction{}, fmt.Errorf("%w: %s: missing rptOwnerCik", edgar.ErrExtract, documentURL)
	}
	period, ok := Traverse(root, "periodOfReport")
	if !ok {
		return edgar.FilingTransaction{}, fmt.Errorf("%w: %s: missing periodOfReport", edgar.ErrExtract, documentURL)
	}
	formDate, err := date(period)
	if err != nil {
		return edgar.FilingTransaction{}, fmt.Errorf("%w: %s: periodOfReport: %w", edgar.ErrExtract, documentURL, err)
	}

	return edgar.FilingTransaction{
		WebURL:        edgar.FilingIndexURL(e.baseURL, ownerCIK, accessNo),
		FormURL:       documentURL,
		AccessNo:      accessNo,
		FormDate:      formDate,
		CompanyCIK:    companyCIK,
		OwnerCIK:      ownerCIK,
		FormType:      text(root, "documentType"),
		Company:       text(root, "issuer", "issuerName"),
		Symbol:        text(root, "issuer", "issuerTradingSymbol"),
		Owner:         text(root, "reportingOwner", "reportingOwnerId", "rptOwnerName"),
		Relationships: relationships(root),
	}, nil
}

// relationships reads the owner's relationship flags. Only the literal "1" sets a flag.
func relationships(root *xmlquery.Node) []edgar.Relationship {
	rels := []edgar.Relationship{}
	for _, f := range relationshipFlags {
		if text(root, "reportingOwner", "reportingOwnerRelationship", f.element) == "1" {
			rels = append(rels, f.rel)
		}
	}
	return rels
}
