// Package store groups the relational store implementations behind edgar.Store:
// postgres for production and memory for development and tests. Both enforce the
// same natural-key uniqueness (issuer and individual CIK, form accession number)
// and the same weak transaction match key.
package store
