// Package eligibility decides whether a labor contract may be renewed under
// the statutory duration limits. It has no side effects.
package eligibility

import (
	"fmt"
	"strconv"
	"time"

	e "github.com/gartstein/staffing/internal/staffing/errors"
	"github.com/gartstein/staffing/internal/staffing/models"
	"github.com/google/uuid"
)

const (
	// MaxRenewableMonths is the longest current contract that may be renewed.
	MaxRenewableMonths = 12
	// CumulativeCapMonths bounds successive fixed-term contracts of one employee.
	CumulativeCapMonths = 24
	// daysPerMonth is the legacy month length used by the cumulative rule.
	// Kept as-is: stored renewal decisions were computed with it.
	daysPerMonth = 30
)

// Result is the outcome of a renewal evaluation.
type Result struct {
	IsEligible bool
	// Reason is an errors.Reason* code, empty when eligible.
	Reason  string
	Message string

	CurrentDurationMonths   int
	CurrentCumulativeMonths float64
	NewDurationMonths       float64
	// AvailableMonths is the cap left before the proposed period.
	AvailableMonths float64
	// RemainingMonths is the cap left once the proposed period is added.
	RemainingMonths float64
}

// Err converts an ineligible result into a business-rule error; nil when eligible.
func (r Result) Err() error {
	if r.IsEligible {
		return nil
	}
	return e.Violation(r.Reason, r.Message, r.Details())
}

// Details renders the numeric fields for the caller.
func (r Result) Details() map[string]string {
	return map[string]string{
		"currentDurationMonths":   strconv.Itoa(r.CurrentDurationMonths),
		"currentCumulativeMonths": formatMonths(r.CurrentCumulativeMonths),
		"newDurationMonths":       formatMonths(r.NewDurationMonths),
		"availableMonths":         formatMonths(r.AvailableMonths),
		"remainingMonths":         formatMonths(r.RemainingMonths),
	}
}

// Evaluate checks whether contract may be renewed for [proposedStart, proposedEnd].
// history holds every contract of the same employee; it may include contract.
func Evaluate(contract *models.Contract, proposedStart time.Time, proposedEnd *time.Time, history []*models.Contract, now time.Time) Result {
	var res Result

	if contract.Status == models.ContractTerminated || contract.Status == models.ContractExpired {
		res.Reason = e.ReasonContractNotRenewable
		res.Message = fmt.Sprintf("a %s contract cannot be renewed", contract.Status)
		return res
	}

	res.CurrentDurationMonths = MonthsBetween(contract.StartDate, endOrNow(contract.EndDate, now))
	if res.CurrentDurationMonths > MaxRenewableMonths {
		res.Reason = e.ReasonDurationExceeded
		res.Message = fmt.Sprintf("only contracts of at most %d months may be renewed (current: %d months)",
			MaxRenewableMonths, res.CurrentDurationMonths)
		return res
	}

	if !contract.Type.FixedTerm() {
		res.IsEligible = true
		return res
	}

	totalDays := 0
	seen := map[uuid.UUID]bool{contract.ID: true}
	totalDays += DaysBetween(contract.StartDate, endOrNow(contract.EndDate, now))
	for _, c := range history {
		if c == nil || seen[c.ID] || c.EmployeeID != contract.EmployeeID {
			continue
		}
		if !c.Type.FixedTerm() {
			continue
		}
		if c.Status != models.ContractActive && c.Status != models.ContractRenewed {
			continue
		}
		seen[c.ID] = true
		totalDays += DaysBetween(c.StartDate, endOrNow(c.EndDate, now))
	}

	res.CurrentCumulativeMonths = float64(totalDays) / daysPerMonth
	res.NewDurationMonths = float64(DaysBetween(proposedStart, endOrNow(proposedEnd, proposedStart))) / daysPerMonth
	res.AvailableMonths = CumulativeCapMonths - res.CurrentCumulativeMonths
	res.RemainingMonths = res.AvailableMonths - res.NewDurationMonths

	if res.CurrentCumulativeMonths+res.NewDurationMonths > CumulativeCapMonths {
		res.Reason = e.ReasonCumulativeCapExceeded
		res.Message = fmt.Sprintf("cumulative fixed-term duration would reach %s months, above the %d-month cap (%s months available)",
			formatMonths(res.CurrentCumulativeMonths+res.NewDurationMonths), CumulativeCapMonths, formatMonths(res.AvailableMonths))
		return res
	}

	res.IsEligible = true
	return res
}

// MonthsBetween counts whole calendar months from start to end. A month is
// only counted once its day of month has been reached.
func MonthsBetween(start, end time.Time) int {
	start, end = models.Date(start), models.Date(end)
	sign := 1
	if end.Before(start) {
		start, end = end, start
		sign = -1
	}
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if end.Day() < start.Day() {
		months--
	}
	return sign * months
}

// DaysBetween counts calendar days from start to end.
func DaysBetween(start, end time.Time) int {
	return int(models.Date(end).Sub(models.Date(start)).Hours() / 24)
}

func endOrNow(end *time.Time, now time.Time) time.Time {
	if end == nil {
		return now
	}
	return *end
}

func formatMonths(m float64) string {
	return strconv.FormatFloat(m, 'f', 2, 64)
}
