package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPgErrorClassification(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	exclusion := fmt.Errorf("insert slot: %w", &pgconn.PgError{Code: "23P01"})
	fk := &pgconn.PgError{Code: "23503"}
	other := errors.New("connection reset")

	if !IsUniqueViolation(unique) || IsUniqueViolation(fk) || IsUniqueViolation(other) {
		t.Error("IsUniqueViolation misclassified")
	}
	if !IsExclusionViolation(exclusion) || IsExclusionViolation(unique) {
		t.Error("IsExclusionViolation should see through wrapping")
	}
	if !IsForeignKeyViolation(fk) || IsForeignKeyViolation(nil) {
		t.Error("IsForeignKeyViolation misclassified")
	}
	if !IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)) || IsNoRows(other) {
		t.Error("IsNoRows misclassified")
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", fmt.Errorf("transition: %w", context.DeadlineExceeded), true},
		{"cancelled", context.Canceled, true},
		{"unexpected eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{"net error", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}, true},
		{"server error", &pgconn.PgError{Code: "23505"}, false},
		{"no rows", pgx.ErrNoRows, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConnectionError(tt.err); got != tt.want {
				t.Errorf("IsConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
