package template

// DefaultTemplate is the embedded default prompt template.
// It uses {{variable}} placeholders for dynamic content injection.
const DefaultTemplate = `# prdloop Iteration
Feature: {{slug}} | Requirement: {{requirement_id}} | Iteration: #{{iteration}}

## Requirement
{{title}}

## Acceptance Criteria
{{criteria}}

{{last_failure}}

## Validation
After you finish, these gates run in order and all must pass:
{{gates}}
The first failing gate stops the run, so fix errors at their root cause.

## Rules
- Implement ONLY this requirement - complete it fully, then STOP
- Satisfy every acceptance criterion above
- Do not edit prd.json or ledger.jsonl directly
- If this requirement cannot proceed, call the requirement-block tool
  with a reason instead of guessing

## Tools
An MCP server is available at {{mcp_url}} with:
- requirement-info: full details of any requirement in this feature
- requirement-block: mark this requirement blocked with a reason
`
