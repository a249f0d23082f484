package prompt

// SQLCandidates is the candidate-generation prompt for the optimizer.
const SQLCandidates = `# SCHEMA
{{schema}}

# ORIGINAL QUERY
` + "```sql\n{{query}}\n```" + `

# INSTRUCTION
Rewrite the query above for the {{dialect}} dialect. Produce exactly {{count}}
alternative queries that are functionally identical: same projected columns
and types, same result multiset under the same parameters. No DDL, no
comments, no explanation.

Answer with one query per line, each on a single line, nothing else.`

// SQLCandidatesSystem frames the model for candidate generation.
const SQLCandidatesSystem = `You are a {{dialect}} performance engineer. You rewrite SQL queries into functionally identical but potentially cheaper forms.`

// Refactor is the per-file refactoring prompt.
const Refactor = `Refactor the following file.

Rules:
{{rules}}

Keep every public signature unchanged. Answer with the complete new file
content only, no fences, no commentary.

# FILE {{file_path}}
{{code}}`

// RefactorSystem frames the model for refactoring.
const RefactorSystem = `You are a careful software engineer. You improve code without changing its observable behavior.`

// DefaultRefactorRules applies when refactoring.rules is not configured.
const DefaultRefactorRules = `- remove duplicated code by extracting common functions
- wrap risky I/O, network, and database calls in exception handlers with logging
- keep public signatures unchanged`
