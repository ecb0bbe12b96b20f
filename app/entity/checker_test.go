package entity

import (
	"reflect"
	"testing"
)

func TestCheckPreservationNoEntities(t *testing.T) {
	result := CheckPreservation("A quiet week on the forums.", "Nothing happened.")

	if !result.Passed {
		t.Error("Expected pass when source has no entities")
	}
	if len(result.Missing) != 0 {
		t.Errorf("Expected no missing entities, got %v", result.Missing)
	}
}

func TestCheckPreservationCriticalMiss(t *testing.T) {
	source := "EIP-1559 changed fees. Burn reached 10%, $1B, $2B, $3B, $4B, $5B, $6B, $7B."
	summary := "Burn reached 10%, $1B, $2B, $3B, $4B, $5B, $6B, $7B."

	result := CheckPreservation(source, summary)

	if result.Passed {
		t.Error("Expected failure when a standards identifier is dropped")
	}
	if !reflect.DeepEqual(result.Critical, []string{"EIP-1559"}) {
		t.Errorf("Expected critical [EIP-1559], got %v", result.Critical)
	}
	if result.Rate < MinPreservationRate {
		t.Errorf("Expected rate above threshold to prove the critical rule, got %f", result.Rate)
	}
}

func TestCheckPreservationToleratesIncidentalLoss(t *testing.T) {
	source := "EIP-4844 ships with 1%, 2%, 3%, 4%, 5%, 6%, 7%, 8% and v1.2.3."
	summary := "EIP-4844 ships with 1%, 2%, 3%, 4%, 5%, 6%, 7%, 8%."

	result := CheckPreservation(source, summary)

	if len(result.Entities) != 10 {
		t.Fatalf("Expected 10 entities, got %d: %v", len(result.Entities), result.Entities)
	}
	if !result.Passed {
		t.Errorf("Expected pass, got %+v", result)
	}
	if result.Rate != 0.9 {
		t.Errorf("Expected rate 0.9, got %f", result.Rate)
	}
	if !reflect.DeepEqual(result.Missing, []string{"v1.2.3"}) {
		t.Errorf("Expected missing [v1.2.3], got %v", result.Missing)
	}
}

func TestCheckPreservationRateBelowThreshold(t *testing.T) {
	source := "Fees: 1%, 2%, 3%, 4%."
	summary := "Fees: 1%, 2%."

	result := CheckPreservation(source, summary)

	if result.Passed {
		t.Error("Expected failure with half the entities missing")
	}
	if result.Rate != 0.5 {
		t.Errorf("Expected rate 0.5, got %f", result.Rate)
	}
	if len(result.Critical) != 0 {
		t.Errorf("Expected no critical misses, got %v", result.Critical)
	}
}

func TestCheckerBoundaryRate(t *testing.T) {
	source := "1%, 2%, 3%, 4%, 5%"
	summary := "1%, 2%, 3%, 4%"

	result := NewChecker().Check(source, summary)
	if !result.Passed {
		t.Errorf("Expected pass at exactly 0.8, got %+v", result)
	}

	strict := &Checker{MinRate: 0.9}
	if strict.Check(source, summary).Passed {
		t.Error("Expected failure with a stricter threshold")
	}
}
