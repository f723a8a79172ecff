package models

import (
	"errors"
	"fmt"
)

// DataGapError marks a contract without a validated Greeks reading after
// retry. The contract is ineligible for construction; the run continues.
type DataGapError struct {
	Symbol string
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("no greeks reading for %s", e.Symbol)
}

// InvalidSpreadError is a candidate that failed a structural filter.
type InvalidSpreadError struct {
	Reason string
	Detail string
}

func (e *InvalidSpreadError) Error() string {
	if e.Detail == "" {
		return "invalid spread: " + e.Reason
	}
	return fmt.Sprintf("invalid spread: %s (%s)", e.Reason, e.Detail)
}

// SuspectDataWarning flags a candidate whose ROI is implausibly high. It is
// kept for diagnostics but never classified ENTER or WATCH.
type SuspectDataWarning struct {
	ROI float64
}

func (e *SuspectDataWarning) Error() string {
	return fmt.Sprintf("suspect roi %.1f%%", e.ROI)
}

// FatalCollectionError means no valid reading arrived for the whole run,
// either because the feed could not be reached (Err is set) or because it
// stayed silent for every symbol.
type FatalCollectionError struct {
	Requested int
	Err       error
}

func (e *FatalCollectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("collection failed for %d symbols: %v", e.Requested, e.Err)
	}
	return fmt.Sprintf("collection failed: 0 of %d symbols returned a valid reading", e.Requested)
}

func (e *FatalCollectionError) Unwrap() error { return e.Err }

// IsFatal reports whether err is a whole-run collection failure.
func IsFatal(err error) bool {
	var fe *FatalCollectionError
	return errors.As(err, &fe)
}

// Rejection reasons used by InvalidSpreadError. Suspect ROI is not a
// rejection: those candidates are kept and reported apart.
const (
	RejectWidth     = "width"
	RejectCredit    = "net_credit"
	RejectMaxLoss   = "max_loss"
	RejectROI       = "roi"
	RejectDelta     = "delta"
	RejectNoGreeks  = "missing_greeks"
	RejectNotOTM    = "not_otm"
	RejectExpiryDTE = "dte"
)
