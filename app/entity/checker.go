package entity

import "strings"

const MinPreservationRate = 0.8

type Result struct {
	Passed   bool
	Entities []string
	Missing  []string
	Critical []string
	Rate     float64
}

type Checker struct {
	MinRate float64
}

func NewChecker() *Checker {
	return &Checker{MinRate: MinPreservationRate}
}

// Check verifies that summary keeps the entities extracted from source.
// Any missing standards identifier fails the check regardless of the rate.
func (c *Checker) Check(source, summary string) Result {
	entities := Extract(source)
	if len(entities) == 0 {
		return Result{Passed: true, Rate: 1}
	}

	var missing, critical []string
	for _, e := range entities {
		if strings.Contains(summary, e) {
			continue
		}
		missing = append(missing, e)
		if IsCritical(e) {
			critical = append(critical, e)
		}
	}

	rate := float64(len(entities)-len(missing)) / float64(len(entities))

	return Result{
		Passed:   rate >= c.MinRate && len(critical) == 0,
		Entities: entities,
		Missing:  missing,
		Critical: critical,
		Rate:     rate,
	}
}

func CheckPreservation(source, summary string) Result {
	return NewChecker().Check(source, summary)
}
