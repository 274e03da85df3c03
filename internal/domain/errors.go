package domain

import "errors"

var (
	// ErrMalformedInput marks records or mappings that cannot enter the pipeline:
	// missing fields, unparsable dates/amounts, or uncategorized records at aggregation.
	ErrMalformedInput = errors.New("malformed input")

	// ErrClassificationFailure marks a per-record categorization failure.
	// It is absorbed by the classifier and never aborts a run.
	ErrClassificationFailure = errors.New("classification failure")

	// ErrOracleContract marks a persona oracle response that violates its contract.
	ErrOracleContract = errors.New("oracle contract violation")

	// ErrEmptyInput means no classified records reached aggregation.
	ErrEmptyInput = errors.New("insufficient data: no classified transactions")
)
