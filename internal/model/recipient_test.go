package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/digestmail/digestmail/internal/model"
)

func TestDeriveNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		full string
		want model.Names
	}{
		{
			name: "two tokens",
			full: "Jane Doe",
			want: model.Names{Full: "Jane Doe", First: "Jane", Last: "J. Doe"},
		},
		{
			name: "middle names use the last token",
			full: "Mary Ann van Buren",
			want: model.Names{Full: "Mary Ann van Buren", First: "Mary", Last: "M. Buren"},
		},
		{
			name: "single token",
			full: "Cher",
			want: model.Names{Full: "Cher", First: "Cher", Last: "C. Cher"},
		},
		{
			name: "multibyte initial",
			full: "Élodie Martin",
			want: model.Names{Full: "Élodie Martin", First: "Élodie", Last: "É. Martin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := model.Recipient{FullName: tt.full, Email: "x@example.com"}.Names()
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	t.Run("blank name fails", func(t *testing.T) {
		t.Parallel()

		_, err := model.DeriveNames("   ")
		require.ErrorIs(t, err, model.ErrEmptyName)
	})
}

func TestProgressPercent(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1.0, model.Progress{}.Percent())
	require.Equal(t, 0.5, model.Progress{Total: 4, Sent: 2, Failed: 1}.Percent())
}

func TestSummaryRecord(t *testing.T) {
	t.Parallel()

	var s model.Summary
	s.Record(model.Outcome{Position: 1, Succeeded: true})
	s.Record(model.Outcome{Position: 2, Error: "rejected"})
	s.Record(model.Outcome{Position: 3, Succeeded: true})

	require.Equal(t, 3, s.Attempted)
	require.Equal(t, 2, s.Succeeded)
	require.Equal(t, 1, s.Failed())
	require.Len(t, s.Failures, 1)
	require.Equal(t, 2, s.Failures[0].Position)
}
