package models

import (
	"fmt"
	"strings"
)

// JoinMode selects which order ids appear in the reconciled ledger.
type JoinMode string

const (
	// JoinFullOuter keeps every order id found in any of the three reports.
	JoinFullOuter JoinMode = "full_outer"
	// JoinShipmentAnchored keeps only order ids present in the shipment
	// report; return and payment rows for other ids are dropped.
	JoinShipmentAnchored JoinMode = "shipment_anchored"
)

// IsValid checks if the join mode is supported
func (m JoinMode) IsValid() bool {
	return m == JoinFullOuter || m == JoinShipmentAnchored
}

func (m JoinMode) String() string {
	return string(m)
}

// ParseJoinMode accepts the canonical names and common aliases.
func ParseJoinMode(s string) (JoinMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full_outer", "full-outer", "outer", "full":
		return JoinFullOuter, nil
	case "shipment_anchored", "shipment-anchored", "shipment", "anchored", "left":
		return JoinShipmentAnchored, nil
	case "":
		return "", fmt.Errorf("join mode is required: choose %s or %s", JoinFullOuter, JoinShipmentAnchored)
	default:
		return "", fmt.Errorf("unknown join mode %q: choose %s or %s", s, JoinFullOuter, JoinShipmentAnchored)
	}
}

// Strictness selects how non-numeric cells in summed columns are handled.
type Strictness string

const (
	// StrictnessLenient counts a non-numeric cell as zero and records a warning.
	StrictnessLenient Strictness = "lenient"
	// StrictnessStrict fails the run on the first non-numeric cell.
	StrictnessStrict Strictness = "strict"
)

// IsValid checks if the strictness level is supported
func (s Strictness) IsValid() bool {
	return s == StrictnessLenient || s == StrictnessStrict
}
