// Package sql provides the action running SQL statements against a database target.
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	_ "github.com/lib/pq"

	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

const defaultLoggedRows = 30

type ActionFactory struct {
	driver string
}

// NewActionFactory returns a factory running statements through lib/pq.
func NewActionFactory() *ActionFactory {
	return &ActionFactory{driver: "postgres"}
}

func (*ActionFactory) ID() string { return "sql" }

func (*ActionFactory) Name() string { return "SQL" }

func (*ActionFactory) Description() string {
	return "Runs SQL statements in order against the database of the step target."
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"statements": map[string]any{
				"type":        "array",
				"description": "Statements executed in order.",
				"items":       map[string]any{"type": "string"},
				"minItems":    1,
			},
			"nbLoggedRow": map[string]any{
				"type":        "integer",
				"description": "Rows of each result written to the step information.",
				"default":     defaultLoggedRows,
			},
		},
		"required": []string{"statements"},
	}
}

func (f *ActionFactory) Create(_ context.Context, request protocol.ActionRequest) (protocol.Action, error) {
	statements := make([]string, 0)
	for _, statement := range request.Inputs.Slice("statements") {
		statements = append(statements, fmt.Sprint(statement))
	}

	return &Action{
		driver:     f.driver,
		statements: statements,
		loggedRows: request.Inputs.Int("nbLoggedRow", defaultLoggedRows),
		target:     request.Target,
		logger:     request.Log().With(slog.String("action_type", "sql")),
	}, nil
}

type Action struct {
	driver     string
	statements []string
	loggedRows int
	target     *models.Target
	logger     *slog.Logger

	mu sync.Mutex
	db *sql.DB
}

// Record is the result of one statement.
type Record struct {
	AffectedRows int64            `json:"affectedRows"`
	Columns      []string         `json:"columns"`
	Rows         []map[string]any `json:"rows"`
}

func (a *Action) ValidateInputs() []string {
	validation := protocol.NewValidation().
		Target(a.target).
		Check(len(a.statements) > 0, "No statements provided")

	for i, statement := range a.statements {
		validation.Check(strings.TrimSpace(statement) != "", fmt.Sprintf("Statement %d is blank", i))
	}

	return validation.Errors()
}

func (a *Action) Execute(ctx context.Context) protocol.ActionResult {
	db, err := a.open()
	if err != nil {
		return a.ko(ctx, fmt.Sprintf("cannot open connection to %s: %s", a.target.Name, err))
	}

	defer a.Release()

	records := make([]Record, 0, len(a.statements))

	for _, statement := range a.statements {
		record, err := a.run(ctx, db, statement)
		if err != nil {
			return a.ko(ctx, fmt.Sprintf("statement failed [%s]: %s", statement, err))
		}

		a.log(ctx, statement, record)
		records = append(records, record)
	}

	outputs := map[string]any{"recordResult": records}
	if len(records) > 0 {
		outputs["rows"] = records[0].Rows
	}

	return protocol.Ok(outputs)
}

// Release closes the connection pool. It is safe to call more than once.
func (a *Action) Release() {
	a.mu.Lock()
	db := a.db
	a.db = nil
	a.mu.Unlock()

	if db != nil {
		_ = db.Close()
	}
}

func (a *Action) open() (*sql.DB, error) {
	db, err := sql.Open(a.driver, a.target.URL)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.db = db
	a.mu.Unlock()

	return db, nil
}

func (a *Action) run(ctx context.Context, db *sql.DB, statement string) (Record, error) {
	if !IsQuery(statement) {
		result, err := db.ExecContext(ctx, statement)
		if err != nil {
			return Record{}, err
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return Record{}, err
		}

		return Record{AffectedRows: affected, Columns: []string{}, Rows: []map[string]any{}}, nil
	}

	rows, err := db.QueryContext(ctx, statement)
	if err != nil {
		return Record{}, err
	}

	defer func() { _ = rows.Close() }()

	return scan(rows)
}

func scan(rows *sql.Rows) (Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return Record{}, err
	}

	record := Record{AffectedRows: -1, Columns: columns, Rows: []map[string]any{}}

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))

		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return Record{}, err
		}

		row := make(map[string]any, len(columns))

		for i, column := range columns {
			if raw, ok := values[i].([]byte); ok {
				row[column] = string(raw)
			} else {
				row[column] = values[i]
			}
		}

		record.Rows = append(record.Rows, row)
	}

	return record, rows.Err()
}

// IsQuery reports whether statement returns rows.
func IsQuery(statement string) bool {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "SHOW", "VALUES", "TABLE", "EXPLAIN":
		return true
	default:
		return strings.Contains(strings.ToUpper(statement), " RETURNING ")
	}
}

func (a *Action) log(ctx context.Context, statement string, record Record) {
	if record.AffectedRows >= 0 {
		a.logger.InfoContext(ctx, fmt.Sprintf("%s : %d row(s) affected", statement, record.AffectedRows))

		return
	}

	a.logger.InfoContext(ctx, fmt.Sprintf("%s : %d row(s) returned", statement, len(record.Rows)))

	for i, row := range record.Rows {
		if i >= a.loggedRows {
			break
		}

		a.logger.InfoContext(ctx, fmt.Sprintf("Row %d: %v", i, row))
	}
}

func (a *Action) ko(ctx context.Context, message string) protocol.ActionResult {
	a.logger.ErrorContext(ctx, message)

	return protocol.Ko(message)
}
