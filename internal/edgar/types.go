// Package edgar defines the domain types shared by the insider filings crawler:
// daily index entries, extracted filing transactions, and the rows persisted for them.
package edgar

import (
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

// IndexEntry is one data row of the EDGAR daily master index.
type IndexEntry struct {
	CIK       string
	Company   string
	FormType  string
	DateFiled civil.Date
	// Path is relative to the Archives root, e.g. edgar/data/320193/0000320193-25-000010.txt.
	Path string
}

// Relationship describes how a reporting owner relates to the issuer.
type Relationship int

// Relationship values. The integer values are the codes stored in the relationships column.
const (
	RelationshipDirector Relationship = iota
	RelationshipOfficer
	RelationshipTenPercentOwner
	RelationshipOther
)

var relationshipTags = map[Relationship]string{
	RelationshipDirector:        "DIRECTOR",
	RelationshipOfficer:         "OFFICER",
	RelationshipTenPercentOwner: "TENPERC",
	RelationshipOther:           "OTHER",
}

// String returns the checkpoint tag for r.
func (r Relationship) String() string {
	if tag, ok := relationshipTags[r]; ok {
		return tag
	}
	return fmt.Sprintf("Relationship(%d)", int(r))
}

// Code is the integer persisted for r.
func (r Relationship) Code() int32 {
	return int32(r)
}

// MarshalJSON encodes r as its tag.
func (r Relationship) MarshalJSON() ([]byte, error) {
	tag, ok := relationshipTags[r]
	if !ok {
		return nil, fmt.Errorf("unknown relationship %d", int(r))
	}
	return json.Marshal(tag)
}

// UnmarshalJSON decodes a relationship tag.
func (r *Relationship) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("relationship tag: %w", err)
	}
	for rel, known := range relationshipTags {
		if strings.EqualFold(known, tag) {
			*r = rel
			return nil
		}
	}
	return fmt.Errorf("unknown relationship tag %q", tag)
}

// RelationshipCodes converts rels into the ordered integer collection stored in Postgres.
func RelationshipCodes(rels []Relationship) []int32 {
	out := make([]int32, 0, len(rels))
	for _, r := range rels {
		out = append(out, r.Code())
	}
	return out
}

// FilingTransaction is one non-derivative transaction extracted from an ownership
// document. It is the record written to checkpoint files.
type FilingTransaction struct {
	WebURL        string         `json:"web_url"`
	FormURL       string         `json:"form_url"`
	AccessNo      string         `json:"access_no"`
	FormDate      civil.Date     `json:"form_date"`
	CompanyCIK    string         `json:"company_cik"`
	OwnerCIK      string         `json:"owner_cik"`
	FormType      string         `json:"form_type"`
	Company       string         `json:"company"`
	Symbol        string         `json:"symbol"`
	Owner         string         `json:"owner"`
	SharesTraded  float64        `json:"shares_traded"`
	AvgPrice      float64        `json:"avg_price"`
	Amount        float64        `json:"amount"`
	SharesOwned   float64        `json:"shares_owned"`
	TransDate     civil.Date     `json:"trans_date"`
	Relationships []Relationship `json:"relationship"`
	ActionCode    string         `json:"action_code"`
	OwnershipCode string         `json:"ownership_code"`
	TransCode     string         `json:"trans_code"`
}

// Issuer is a row of the issuer table. CIK is the natural key.
type Issuer struct {
	ID     int64
	Name   string
	Symbol string
	CIK    string
}

// Individual is a row of the individual table. CIK is the natural key.
type Individual struct {
	ID        int64
	CIK       string
	FullName  string
	FirstName string
	LastName  string
}

// Form is a row of the form table. AccessNo is the natural key.
type Form struct {
	ID           int64
	IssuerID     int64
	DateReported civil.Date
	FormType     string
	TxtURL       string
	WebURL       string
	AccessNo     string
}

// Transaction is a row of the non_deriv_transaction table.
type Transaction struct {
	ID              int64
	DateReported    civil.Date
	FormID          int64
	IssuerID        int64
	IndividualID    int64
	ActionCode      string
	OwnershipCode   string
	TransactionCode string
	SharesBalance   float64
	SharesTraded    float64
	AvgPrice        float64
	Amount          float64
	Relationships   []int32
}

// TransactionKey is the match key used to decide whether a transaction row already
// exists. It is weak: two distinct trades on the same form and date that leave the
// same balance collapse into one row.
type TransactionKey struct {
	FormID        int64
	Date          civil.Date
	SharesBalance float64
}

// Key returns the dedup key of t.
func (t Transaction) Key() TransactionKey {
	return TransactionKey{FormID: t.FormID, Date: t.DateReported, SharesBalance: t.SharesBalance}
}

// NewIssuer maps the issuer half of tx.
func NewIssuer(tx FilingTransaction) Issuer {
	return Issuer{Name: tx.Company, Symbol: tx.Symbol, CIK: tx.CompanyCIK}
}

// NewIndividual maps the reporting owner of tx, splitting the name.
func NewIndividual(tx FilingTransaction) Individual {
	first, last := SplitName(tx.Owner)
	return Individual{CIK: tx.OwnerCIK, FullName: tx.Owner, FirstName: first, LastName: last}
}

// NewForm maps the form metadata of tx for the given issuer.
func NewForm(tx FilingTransaction, issuerID int64) Form {
	return Form{
		IssuerID:     issuerID,
		DateReported: tx.FormDate,
		FormType:     tx.FormType,
		TxtURL:       tx.FormURL,
		WebURL:       tx.WebURL,
		AccessNo:     tx.AccessNo,
	}
}

// NewTransaction maps tx into a transaction row for the resolved foreign keys.
func NewTransaction(tx FilingTransaction, formID, issuerID, individualID int64) Transaction {
	return Transaction{
		DateReported:    tx.TransDate,
		FormID:          formID,
		IssuerID:        issuerID,
		IndividualID:    individualID,
		ActionCode:      tx.ActionCode,
		OwnershipCode:   tx.OwnershipCode,
		TransactionCode: tx.TransCode,
		SharesBalance:   tx.SharesOwned,
		SharesTraded:    tx.SharesTraded,
		AvgPrice:        tx.AvgPrice,
		Amount:          tx.Amount,
		Relationships:   RelationshipCodes(tx.Relationships),
	}
}

// SplitName splits an EDGAR owner name ("LAST FIRST MIDDLE") into first and last
// names. Names with fewer than two tokens yield two empty strings.
func SplitName(full string) (first, last string) {
	tokens := strings.Fields(full)
	if len(tokens) < 2 {
		return "", ""
	}
	return strings.Join(tokens[1:], " "), tokens[0]
}
