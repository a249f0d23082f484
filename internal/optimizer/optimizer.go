// Package optimizer measures candidate queries against a live database and
// picks the cheapest plan. All database access is read-only plan/analyze
// work; the optimizer never runs DDL.
package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/lucasnoah/commitly/internal/config"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

// Plan is the planner's verdict on one query.
type Plan struct {
	TotalCost float64 `json:"total_cost"`
	TimeMS    float64 `json:"execution_time_ms"`
}

// Explainer measures queries and describes tables. Interface for testing.
type Explainer interface {
	Explain(ctx context.Context, query string) (*Plan, error)
	TableSchema(ctx context.Context, table string) (string, error)
	Close(ctx context.Context) error
}

// PGExplainer implements Explainer against PostgreSQL via pgx.
type PGExplainer struct {
	conn *pgx.Conn
}

// Connect opens a connection to the optimizer's target database. Failures
// surface as DatabaseUnavailable so the caller can degrade the optimizer to
// a no-op.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*PGExplainer, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName)
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, pipeline.Wrap(pipeline.KindDatabaseUnavailable, "connect to optimizer database", err)
	}
	return &PGExplainer{conn: conn}, nil
}

func (p *PGExplainer) Close(ctx context.Context) error {
	return p.conn.Close(ctx)
}

// Explain runs EXPLAIN (ANALYZE, BUFFERS, COSTS, FORMAT JSON) on the query
// and extracts the planner total cost and actual runtime.
func (p *PGExplainer) Explain(ctx context.Context, query string) (*Plan, error) {
	var raw []byte
	stmt := "EXPLAIN (ANALYZE, BUFFERS, COSTS, FORMAT JSON) " + query
	if err := p.conn.QueryRow(ctx, stmt).Scan(&raw); err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}

	var nodes []struct {
		Plan struct {
			TotalCost float64 `json:"Total Cost"`
		} `json:"Plan"`
		ExecutionTime float64 `json:"Execution Time"`
	}
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("parse explain output: %w", err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("explain returned no plan")
	}
	return &Plan{TotalCost: nodes[0].Plan.TotalCost, TimeMS: nodes[0].ExecutionTime}, nil
}

// TableSchema returns a compact CREATE TABLE rendering of a table plus its
// declared indices, for the candidate-generation prompt.
func (p *PGExplainer) TableSchema(ctx context.Context, table string) (string, error) {
	rows, err := p.conn.Query(ctx,
		`SELECT column_name, data_type
		   FROM information_schema.columns
		  WHERE table_name = $1
		  ORDER BY ordinal_position`, table)
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return "", fmt.Errorf("scan column of %s: %w", table, err)
		}
		cols = append(cols, name+" "+typ)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(cols) == 0 {
		return fmt.Sprintf("-- schema for %s not found", table), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (%s);", table, strings.Join(cols, ", "))

	idxRows, err := p.conn.Query(ctx,
		`SELECT indexdef FROM pg_indexes WHERE tablename = $1 ORDER BY indexname`, table)
	if err == nil {
		defer idxRows.Close()
		for idxRows.Next() {
			var def string
			if err := idxRows.Scan(&def); err == nil {
				b.WriteString("\n" + def + ";")
			}
		}
	}
	return b.String(), nil
}

// SchemaBrief concatenates the schema of every referenced table. A table
// whose schema cannot be read contributes a placeholder comment instead of
// failing the site.
func SchemaBrief(ctx context.Context, ex Explainer, tables []string) string {
	var parts []string
	for _, table := range tables {
		schema, err := ex.TableSchema(ctx, table)
		if err != nil {
			schema = fmt.Sprintf("-- schema for %s not found", table)
		}
		parts = append(parts, schema)
	}
	return strings.Join(parts, "\n")
}
