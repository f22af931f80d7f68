package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/zuclubit/certus/pkg/domain-errors"
)

// TestParseSubmissionID_Invariants validates the parsing invariant:
// IDs must be valid, non-empty, non-nil UUIDs at trust boundaries.
func TestParseSubmissionID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSubmissionID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSubmissionID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseSubmissionID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseSubmissionID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, SubmissionID(valid), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety between ID
// kinds. If this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	subID := NewSubmissionID()
	tenantID := NewTenantID()

	// These would fail to compile if types were interchangeable:
	// var _ SubmissionID = tenantID // compile error
	// var _ TenantID = subID        // compile error

	assert.NotEqual(t, uuid.UUID(subID), uuid.UUID(tenantID))
}

func TestParseFileType(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    FileType
		wantErr bool
	}{
		{"cartera", "CARTERA", FileTypeCartera, false},
		{"aportaciones", "APORTACIONES", FileTypeAportaciones, false},
		{"empty", "", "", true},
		{"lowercase rejected", "cartera", "", true},
		{"unknown", "NOMINA", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFileType(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityError))
	assert.True(t, SeverityError.AtLeast(SeverityError))
	assert.False(t, SeverityWarning.AtLeast(SeverityError))
	assert.False(t, SeverityInfo.AtLeast(SeverityWarning))
}
