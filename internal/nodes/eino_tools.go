package nodes

import (
	"context"
	"fmt"

	"hybrid_copilot/internal/core"
	"hybrid_copilot/internal/logger"
	"hybrid_copilot/pkg"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

// Tool names
const (
	ToolSQLQuery   = "sql_query"
	ToolSearchDocs = "search_docs"
	ToolSchema     = "db_schema"
)

// SQLQueryInput is the argument of the sql_query tool
type SQLQueryInput struct {
	Query string `json:"query" jsonschema:"description=SQLite statement to run against the retail database"`
}

// SQLQueryOutput is the result of the sql_query tool
type SQLQueryOutput struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Error     string           `json:"error,omitempty"`
	Truncated bool             `json:"truncated,omitempty"`
}

// SearchDocsInput is the argument of the search_docs tool
type SearchDocsInput struct {
	Query string `json:"query" jsonschema:"description=Free text describing the information to find"`
	K     int    `json:"k,omitempty" jsonschema:"description=Maximum number of passages to return"`
}

// SearchDocsOutput is the result of the search_docs tool
type SearchDocsOutput struct {
	Passages []pkg.Passage `json:"passages"`
}

// SchemaInput is the (empty) argument of the db_schema tool
type SchemaInput struct{}

// SchemaOutput is the result of the db_schema tool
type SchemaOutput struct {
	Summary string `json:"summary"`
}

// SQLQueryTool exposes the executor to tool-calling models. At most maxRows
// rows are returned.
func SQLQueryTool(executor core.QueryExecutor, maxRows int) (tool.InvokableTool, error) {
	return utils.InferTool(ToolSQLQuery, "Run a SQL query on the retail database and return columns and rows",
		func(ctx context.Context, in *SQLQueryInput) (*SQLQueryOutput, error) {
			logger.Debug().Str("tool", ToolSQLQuery).Str("query", in.Query).Msg("Running tool")

			result := executor.Execute(ctx, in.Query)
			out := &SQLQueryOutput{
				Columns: result.Columns,
				Rows:    result.Rows,
				Error:   result.Error,
			}
			if maxRows > 0 && len(out.Rows) > maxRows {
				out.Rows = out.Rows[:maxRows]
				out.Truncated = true
			}
			return out, nil
		})
}

// SearchDocsTool exposes the retriever. K defaults to defaultK.
func SearchDocsTool(retriever core.Retriever, defaultK int) (tool.InvokableTool, error) {
	return utils.InferTool(ToolSearchDocs, "Search the policy, catalog, calendar and KPI documents for relevant passages",
		func(ctx context.Context, in *SearchDocsInput) (*SearchDocsOutput, error) {
			logger.Debug().Str("tool", ToolSearchDocs).Str("query", in.Query).Msg("Running tool")

			k := in.K
			if k <= 0 {
				k = defaultK
			}
			passages, err := retriever.Retrieve(ctx, in.Query, k)
			if err != nil {
				return nil, fmt.Errorf("search failed: %w", err)
			}
			return &SearchDocsOutput{Passages: passages}, nil
		})
}

// SchemaTool returns the database schema summary
func SchemaTool(executor core.QueryExecutor) (tool.InvokableTool, error) {
	return utils.InferTool(ToolSchema, "Describe the tables and columns of the retail database",
		func(ctx context.Context, _ *SchemaInput) (*SchemaOutput, error) {
			summary, err := executor.SchemaSummary(ctx)
			if err != nil {
				return nil, fmt.Errorf("schema lookup failed: %w", err)
			}
			return &SchemaOutput{Summary: summary}, nil
		})
}

// GetTools returns every tool over the given collaborators
func GetTools(executor core.QueryExecutor, retriever core.Retriever, maxRows, defaultK int) ([]tool.InvokableTool, error) {
	sqlTool, err := SQLQueryTool(executor, maxRows)
	if err != nil {
		return nil, fmt.Errorf("error creating %s tool: %w", ToolSQLQuery, err)
	}
	searchTool, err := SearchDocsTool(retriever, defaultK)
	if err != nil {
		return nil, fmt.Errorf("error creating %s tool: %w", ToolSearchDocs, err)
	}
	schemaTool, err := SchemaTool(executor)
	if err != nil {
		return nil, fmt.Errorf("error creating %s tool: %w", ToolSchema, err)
	}
	return []tool.InvokableTool{sqlTool, searchTool, schemaTool}, nil
}
