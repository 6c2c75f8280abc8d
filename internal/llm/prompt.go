package llm

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

func getRouterTemplate() string {
	return `You route retail analytics questions to a processing mode.

			Modes:
			- rag: the answer is in the policy, calendar, catalog or KPI documents
			- sql: the answer needs numbers computed from the orders database
			- hybrid: the question needs document facts (dates, definitions) AND database numbers

			Reply with exactly one word: rag, sql or hybrid.`
}

func getNL2SQLTemplate() string {
	return `You write SQLite queries for a retail database.

			RULES:
			1. Use only tables and columns from the schema below
			2. Quote table names containing spaces with double quotes, e.g. "Order Details"
			3. Return a single SELECT statement and nothing else, no explanation

			Schema:
			{db_schema}`
}

func getSynthesizerTemplate() string {
	return `You answer retail analytics questions from retrieved documents and SQL results.

			Return ONLY a JSON object with these keys:
			{{"final_answer": <answer matching the format hint>, "citations": "<comma separated chunk ids you used>", "confidence": <number between 0.0 and 1.0>, "explanation": "<one or two sentences>"}}

			Citations are document chunk ids such as kpi_definitions::chunk2. Cite only ids that appear in the documents below.`
}

// AgentInstructions is the system message of the interactive tool agent
func AgentInstructions() string {
	return `You answer retail analytics questions with the tools provided.

			- Call db_schema before writing SQL if you do not know the tables
			- Use sql_query for numbers and search_docs for policies, dates and KPI definitions
			- Quote table names containing spaces with double quotes, e.g. "Order Details"
			- When you have the answer, reply in plain text and cite chunk ids you used in brackets`
}

func createRouterTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(getRouterTemplate()),
		schema.UserMessage("Question: {question}\nMode:"),
	)
}

func createNL2SQLTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(getNL2SQLTemplate()),
		schema.UserMessage("Constraints: {constraints}\n\nQuestion: {question}\n\nSQL:"),
	)
}

func createSynthesizerTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(getSynthesizerTemplate()),
		schema.UserMessage(`Question: {question}
Format hint: {format_hint}

Documents:
{retrieved_docs}

SQL query:
{sql}

SQL results:
{sql_rows}`),
	)
}
