package integration

import (
	"net/http"
	"testing"
)

const sampleBatch = `
description: integration sample
expressions:
  - id: area
    expression: (2+3)*4
    expect: "20"
  - 1/3
  - id: dz
    expression: 10/0
    expect: DivideByZero
`

// TestBatches_Lifecycle creates, reads, lists and deletes a batch.
func TestBatches_Lifecycle(t *testing.T) {
	id := uniqueID("lifecycle")
	defer deleteBatch(t, id)

	code, raw := createBatch(t, id, sampleBatch)
	if code != http.StatusOK {
		t.Fatalf("createBatch failed with status %d: %v", code, raw)
	}
	if raw["state"] != "SUCCEEDED" {
		t.Errorf("expected SUCCEEDED, got %v", raw["state"])
	}

	code, raw = getJSON(t, apiURL("batches/"+id+"/evaluations"))
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	items, _ := raw["evaluations"].([]interface{})
	if len(items) != 3 {
		t.Fatalf("expected 3 evaluations, got %d", len(items))
	}
	results := make([]evaluation, len(items))
	for i, it := range items {
		m, _ := it.(map[string]interface{})
		results[i] = toEvaluation(m)
	}
	if results[0].Result != "20" || results[1].Result != "0.33" || results[2].Tag != "DivideByZero" {
		t.Errorf("unexpected batch results: %+v", results)
	}

	code, _ = createBatch(t, id, sampleBatch)
	if code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate batch, got %d", code)
	}

	deleteBatch(t, id)
	code, _ = getJSON(t, apiURL("batches/"+id))
	if code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", code)
	}
}

// TestBatches_ExpectationMismatch verifies a missed expectation fails the batch.
func TestBatches_ExpectationMismatch(t *testing.T) {
	id := uniqueID("mismatch")
	defer deleteBatch(t, id)

	code, raw := createBatch(t, id, "expressions:\n  - expression: 1+1\n    expect: \"3\"\n")
	if code != http.StatusOK {
		t.Fatalf("createBatch failed with status %d: %v", code, raw)
	}
	if raw["state"] != "FAILED" {
		t.Errorf("expected FAILED, got %v", raw["state"])
	}
}

// TestBatches_InvalidSource verifies parse errors are rejected up front.
func TestBatches_InvalidSource(t *testing.T) {
	code, _ := createBatch(t, uniqueID("invalid"), "expressions: not-a-list")
	if code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}
