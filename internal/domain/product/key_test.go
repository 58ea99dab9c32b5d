package product

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	supplierA := uuid.MustParse("7d4f1c2e-8a7b-4e43-9a5f-0e7d2b8a1c11")
	supplierB := uuid.MustParse("1a2b3c4d-5e6f-4a1b-8c2d-3e4f5a6b7c8d")

	tests := []struct {
		name        string
		itemCode    string
		description string
		supplierID  *uuid.UUID
		want        string
	}{
		{"CodeWins", "  SKU-001 ", "Tomatoes", &supplierA, "code:sku-001"},
		{"DescriptionNormalised", "", "  Roma   TOMATOES\t5kg ", &supplierA, "desc:roma tomatoes 5kg"},
		{"BlankCodeFallsBackToDescription", "   ", "Milk", nil, "desc:milk"},
		{"UnknownScopedBySupplier", "", "  ", &supplierA, "unknown:" + supplierA.String()},
		{"UnknownWithoutSupplier", "", "", nil, "unknown:unresolved"},
		{"UnknownWithNilUUID", "", "", &uuid.Nil, "unknown:unresolved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.itemCode, tt.description, tt.supplierID))
		})
	}

	t.Run("UnknownNeverMergesAcrossSuppliers", func(t *testing.T) {
		assert.NotEqual(t, Key("", "", &supplierA), Key("", "", &supplierB))
		assert.True(t, IsUnknown(Key("", "", &supplierA)))
		assert.False(t, IsUnknown(Key("", "milk", &supplierA)))
	})

	t.Run("CodeAndDescriptionNamespacesDoNotCollide", func(t *testing.T) {
		assert.NotEqual(t, Key("milk", "", nil), Key("", "milk", nil))
	})
}

func TestIdentity_String(t *testing.T) {
	supplierID := uuid.New()

	assert.Equal(t, supplierID.String()+"|desc:milk", Identity{SupplierID: &supplierID, Key: "desc:milk"}.String())
	assert.Equal(t, Identity{Key: "desc:milk"}.String(), Identity{SupplierID: &uuid.Nil, Key: "desc:milk"}.String())
}
