package loans

import (
	"errors"
	"time"
)

// LogicalOperator controls how a policy combines its condition dimensions.
type LogicalOperator string

const (
	// OperatorOr matches when any non-empty dimension intersects.
	OperatorOr LogicalOperator = "OR"
	// OperatorAnd matches when every non-empty dimension intersects.
	OperatorAnd LogicalOperator = "AND"
)

// Dimension names one condition axis of a loan policy.
type Dimension string

// The condition dimensions, in evaluation order. This fixed table replaces
// the original's runtime discovery of condition fields.
const (
	DimCollections     Dimension = "collections"
	DimLocations       Dimension = "locations"
	DimClassifications Dimension = "classifications"
	DimGroups          Dimension = "groups"
	DimUsers           Dimension = "users"
	DimBooks           Dimension = "books"
	DimSpecimens       Dimension = "specimens"
)

// Dimensions lists every condition dimension in evaluation order.
var Dimensions = []Dimension{
	DimCollections,
	DimLocations,
	DimClassifications,
	DimGroups,
	DimUsers,
	DimBooks,
	DimSpecimens,
}

// Policy is a prioritized, conditionally scoped loan-duration rule.
type Policy struct {
	ID              int64                  `json:"id"`
	Description     string                 `json:"description"`
	Days            int                    `json:"days"`
	LogicalOperator LogicalOperator        `json:"logical_operator"`
	IsDefault       bool                   `json:"is_default"`
	Priority        int                    `json:"priority"`
	Conditions      map[Dimension][]string `json:"conditions,omitempty"`
	Steps           []RenewalStep          `json:"steps,omitempty"`
}

// IsEmpty reports whether the policy carries no conditions at all.
func (p Policy) IsEmpty() bool {
	for _, dim := range Dimensions {
		if len(p.Conditions[dim]) > 0 {
			return false
		}
	}
	return true
}

// RenewalStep is one allowed extension of a loan under a policy, applied in
// strict Order sequence.
type RenewalStep struct {
	ID          int64  `json:"id"`
	PolicyID    int64  `json:"policy_id"`
	Description string `json:"description"`
	Days        int    `json:"days"`
	Order       int    `json:"order"`
}

// Loan records one specimen checked out by one user. The policy is fixed at
// creation; renewals accumulate in application order.
type Loan struct {
	ID         int64         `json:"id"`
	SpecimenID *int64        `json:"specimen_id"`
	UserID     int64         `json:"user_id"`
	Policy     Policy        `json:"policy"`
	Date       time.Time     `json:"date"`
	ReturnDate *time.Time    `json:"return_date,omitempty"`
	Renewals   []RenewalStep `json:"renewals,omitempty"`
}

// Returned reports whether the loan has been closed.
func (l Loan) Returned() bool {
	return l.ReturnDate != nil
}

// ExactDue is the due instant before calendar adjustment: start date plus the
// policy duration plus every applied renewal, in application order.
func (l Loan) ExactDue() time.Time {
	days := l.Policy.Days
	for _, r := range l.Renewals {
		days += r.Days
	}
	return l.Date.AddDate(0, 0, days)
}

// Rejection is a business-rule refusal: an expected outcome surfaced to the
// operator, never an error.
type Rejection string

// OK reports whether the operation was accepted.
func (r Rejection) OK() bool {
	return r == ""
}

// The business-rule rejections.
const (
	RejectionNone                Rejection = ""
	RejectionRenewalNotStarted   Rejection = "latest renewal period hasn't started yet"
	RejectionNoMoreRenewals      Rejection = "no more renewals available"
	RejectionNothingToUnrenew    Rejection = "no renewal to remove"
	RejectionSpecimenUnavailable Rejection = "specimen is already on loan"
	RejectionAlreadyReturned     Rejection = "loan already returned"
)

var (
	// ErrNoDefaultPolicy indicates no policy matched and none is default.
	ErrNoDefaultPolicy = errors.New("loans: no default policy configured")
	// ErrNoOpenDay indicates no weekday is configured as open.
	ErrNoOpenDay = errors.New("loans: no open weekday configured")
	// ErrLoanNotFound indicates the loan does not exist.
	ErrLoanNotFound = errors.New("loans: loan not found")
	// ErrPolicyNotFound indicates the policy does not exist.
	ErrPolicyNotFound = errors.New("loans: policy not found")
	// ErrPolicyInUse indicates a policy still referenced by loans.
	ErrPolicyInUse = errors.New("loans: policy still referenced by loans")
)
