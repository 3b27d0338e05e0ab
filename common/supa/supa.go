// Package supa builds the Supabase client used by the functions.
// Functions run server-side with the service role key; row ownership is enforced in code.
package supa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"podmarket/common/app"

	"github.com/supabase-community/supabase-go"
)

var ErrNoRows = errors.New("no rows")

func Client(ctx context.Context) (*supabase.Client, error) {
	return app.CachedValue(ctx, []any{"Supabase", "Client"}, func() (*supabase.Client, error) {
		url := os.Getenv("SUPABASE_URL")
		key := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
		if url == "" || key == "" {
			return nil, fmt.Errorf("invalid or incomplete Supabase environment variables")
		}
		client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
		if err != nil {
			return nil, fmt.Errorf("could not create Supabase client:\n>>> %w", err)
		}
		return client, nil
	})
}

// SelectOne runs a select that must match exactly one row and decodes it into out.
func SelectOne(ctx context.Context, table string, columns string, filters map[string]string, out any) error {
	client, err := Client(ctx)
	if err != nil {
		return err
	}
	query := client.From(table).Select(columns, "", false)
	for column, value := range filters {
		query = query.Eq(column, value)
	}
	var rows []json.RawMessage
	if _, err := query.Limit(2, "").ExecuteTo(&rows); err != nil {
		return fmt.Errorf("error selecting from %s:\n>>> %w", table, err)
	}
	switch len(rows) {
	case 0:
		return ErrNoRows
	case 1:
		if err := json.Unmarshal(rows[0], out); err != nil {
			return fmt.Errorf("error decoding %s row:\n>>> %w", table, err)
		}
		return nil
	default:
		return fmt.Errorf("select on %s expected exactly 1 result, got more: %v", table, filters)
	}
}

func SelectMany(ctx context.Context, table string, columns string, filters map[string]string, out any) error {
	client, err := Client(ctx)
	if err != nil {
		return err
	}
	query := client.From(table).Select(columns, "", false)
	for column, value := range filters {
		query = query.Eq(column, value)
	}
	if _, err := query.ExecuteTo(out); err != nil {
		return fmt.Errorf("error selecting from %s:\n>>> %w", table, err)
	}
	return nil
}

// SelectIn selects rows whose column is one of values.
func SelectIn(ctx context.Context, table string, columns string, column string, values []string, out any) error {
	client, err := Client(ctx)
	if err != nil {
		return err
	}
	if _, err := client.From(table).Select(columns, "", false).In(column, values).ExecuteTo(out); err != nil {
		return fmt.Errorf("error selecting from %s:\n>>> %w", table, err)
	}
	return nil
}

// Insert inserts values and decodes the inserted row(s) into out when out is not nil.
func Insert(ctx context.Context, table string, values any, out any) error {
	client, err := Client(ctx)
	if err != nil {
		return err
	}
	data, _, err := client.From(table).Insert(values, false, "", "representation", "").Execute()
	if err != nil {
		return fmt.Errorf("error inserting into %s:\n>>> %w", table, err)
	}
	return decodeReturning(table, data, out)
}

func Upsert(ctx context.Context, table string, values any, onConflict string) error {
	client, err := Client(ctx)
	if err != nil {
		return err
	}
	if _, _, err := client.From(table).Upsert(values, onConflict, "minimal", "").Execute(); err != nil {
		return fmt.Errorf("error upserting into %s:\n>>> %w", table, err)
	}
	return nil
}

// Update sets values on the rows matching filters and returns how many were changed.
func Update(ctx context.Context, table string, values map[string]any, filters map[string]string) (int, error) {
	client, err := Client(ctx)
	if err != nil {
		return 0, err
	}
	query := client.From(table).Update(values, "representation", "")
	for column, value := range filters {
		query = query.Eq(column, value)
	}
	var rows []json.RawMessage
	if _, err := query.ExecuteTo(&rows); err != nil {
		return 0, fmt.Errorf("error updating %s:\n>>> %w", table, err)
	}
	return len(rows), nil
}

func Delete(ctx context.Context, table string, filters map[string]string) error {
	client, err := Client(ctx)
	if err != nil {
		return err
	}
	query := client.From(table).Delete("minimal", "")
	for column, value := range filters {
		query = query.Eq(column, value)
	}
	if _, _, err := query.Execute(); err != nil {
		return fmt.Errorf("error deleting from %s:\n>>> %w", table, err)
	}
	return nil
}

func decodeReturning(table string, data []byte, out any) error {
	if out == nil {
		return nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("error decoding %s rows:\n>>> %w", table, err)
	}
	if len(rows) == 0 {
		return ErrNoRows
	}
	if err := json.Unmarshal(rows[0], out); err != nil {
		return fmt.Errorf("error decoding %s row:\n>>> %w", table, err)
	}
	return nil
}
