package google

import (
	"testing"
)

// Build a small matrix emulating a mirrored year sheet
func ledgerValues() [][]interface{} {
	return [][]interface{}{
		{"Referencia", "Fecha", "Linea", "Cuenta", "Descripcion", "Debito", "Credito"},
		{"AST-2026-000001", "2026-01-10", 1, "510-100-000-000", "Compra de insumos", "150.00", ""},
		{"AST-2026-000001", "2026-01-10", 2, "110-505-000-000", "Compra de insumos", "", "150.00"},
		{"AST-2026-000002", "2026-01-15", 1, "110-505-000-000", "Venta de contado", "800.00", ""},
		{"AST-2026-000002", "2026-01-15", 2, "410-100-000-000", "Venta de contado", "", "800.00"},
		{},
		{"AST-2026-000003", "2026-02-01", 1, "620-100-000-000", "Nomina enero", "1200.00", ""},
		{"AST-2026-000003", "2026-02-01", 2, "110-505-000-000", "Nomina enero", "", "1200.00"},
	}
}

func TestMatchReferenceRows(t *testing.T) {
	values := ledgerValues()

	rows := matchReferenceRows(values, "AST-2026-000002")
	if len(rows) != 2 || rows[0] != 3 || rows[1] != 4 {
		t.Fatalf("unexpected rows for AST-2026-000002: %v", rows)
	}

	rows = matchReferenceRows(values, "AST-2026-000003")
	if len(rows) != 2 || rows[0] != 6 || rows[1] != 7 {
		t.Fatalf("unexpected rows for AST-2026-000003: %v", rows)
	}

	if rows := matchReferenceRows(values, "AST-2026-999999"); len(rows) != 0 {
		t.Fatalf("expected no rows for unknown reference, got %v", rows)
	}

	// The header cell must never match
	if rows := matchReferenceRows(values, "Referencia"); len(rows) != 1 || rows[0] != 0 {
		t.Fatalf("header match sanity check failed: %v", rows)
	}
}

func TestCollectReferences(t *testing.T) {
	refs := collectReferences(ledgerValues())

	expected := []string{"AST-2026-000001", "AST-2026-000002", "AST-2026-000003"}
	if len(refs) != len(expected) {
		t.Fatalf("expected %d references, got %d: %v", len(expected), len(refs), refs)
	}
	for i, want := range expected {
		if refs[i] != want {
			t.Errorf("refs[%d] = %q, want %q", i, refs[i], want)
		}
	}
}

func TestCollectReferences_NoHeader(t *testing.T) {
	// A sheet written without a header row keeps its first reference
	values := [][]interface{}{
		{"AST-2025-000001", "2025-03-01", 1, "510-100-000-000", "Arriendo", "500.00", ""},
		{"AST-2025-000001", "2025-03-01", 2, "110-505-000-000", "Arriendo", "", "500.00"},
	}

	refs := collectReferences(values)
	if len(refs) != 1 || refs[0] != "AST-2025-000001" {
		t.Fatalf("unexpected refs: %v", refs)
	}
}

func TestCollectReferences_Empty(t *testing.T) {
	if refs := collectReferences(nil); len(refs) != 0 {
		t.Fatalf("expected no refs for empty sheet, got %v", refs)
	}
}
