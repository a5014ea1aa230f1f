package complexity

import "testing"

func TestEstimateSimplePrompt(t *testing.T) {
	result := Estimate("list files")
	if result.Level != LevelSimple {
		t.Fatalf("expected simple, got %s", result.Level)
	}
}

func TestEstimateComplexPrompt(t *testing.T) {
	result := Estimate("Refactor the authentication system, migrate to JWT, and optimize database queries")
	if result.Level != LevelComplex && result.Level != LevelExpert {
		t.Fatalf("expected complex or expert, got %s", result.Level)
	}
}

func TestEstimateMultiStepNumberedPrompt(t *testing.T) {
	result := Estimate("1. set up the project 2. write the tests 3. then ship it")
	if !result.Signals.MultiStep {
		t.Fatalf("expected multi-step detection for a numbered-step prompt")
	}
}

func TestTierFloorOrdering(t *testing.T) {
	if TierFloor(LevelExpert) >= TierFloor(LevelComplex) {
		t.Fatalf("expected expert's tier floor to be strictly stronger than complex's")
	}
	if TierFloor(LevelComplex) >= TierFloor(LevelModerate) {
		t.Fatalf("expected complex's tier floor to be strictly stronger than moderate's")
	}
	if TierFloor(LevelModerate) >= TierFloor(LevelSimple) {
		t.Fatalf("expected moderate's tier floor to be strictly stronger than simple's")
	}
}

func TestInputTokenEstimate(t *testing.T) {
	result := Estimate("12345678")
	if result.Signals.InputTokenEstimate != 2 {
		t.Fatalf("expected ceil(8/4)=2 tokens, got %d", result.Signals.InputTokenEstimate)
	}
}
