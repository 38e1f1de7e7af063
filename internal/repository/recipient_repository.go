package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/digestmail/digestmail/internal/model"
)

// RecipientRepository reads the recipient list from a CSV file with a header
// row naming the display-name and email columns.
type RecipientRepository struct {
	path        string
	nameColumn  string
	emailColumn string
}

// NewRecipientRepository creates a new RecipientRepository
func NewRecipientRepository(path, nameColumn, emailColumn string) *RecipientRepository {
	return &RecipientRepository{
		path:        path,
		nameColumn:  nameColumn,
		emailColumn: emailColumn,
	}
}

// List returns the recipients in file order
func (r *RecipientRepository) List() ([]model.Recipient, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recipient list: %w", err)
	}
	defer f.Close()

	return ParseRecipients(f, r.nameColumn, r.emailColumn)
}

// ParseRecipients reads CSV rows keyed by the header. A source without a
// header row is invalid; a header with no data rows is an empty list.
func ParseRecipients(src io.Reader, nameColumn, emailColumn string) ([]model.Recipient, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: recipient list has no header row", ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read recipient header: %w", err)
	}

	nameIdx, emailIdx := -1, -1
	for i, col := range header {
		col = strings.TrimPrefix(col, "\ufeff")
		switch col {
		case nameColumn:
			nameIdx = i
		case emailColumn:
			emailIdx = i
		}
	}
	if nameIdx < 0 || emailIdx < 0 {
		return nil, fmt.Errorf("%w: recipient list needs %q and %q columns", ErrInvalidInput, nameColumn, emailColumn)
	}

	var recipients []model.Recipient
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read recipient row: %w", err)
		}
		recipients = append(recipients, model.Recipient{
			FullName: field(row, nameIdx),
			Email:    field(row, emailIdx),
		})
	}
	return recipients, nil
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
