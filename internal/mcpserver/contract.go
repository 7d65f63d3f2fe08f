package mcpserver

// EntryFormatContract describes the canonical entry shape and timestamp
// format that LLM consumers should follow when creating or searching entries.
const EntryFormatContract = `# Dagaz Entry Format Contract

Every journal entry stored in Dagaz follows this shape.

## Fields

- **body** – free text, any language, any length. May be empty.
- **created** – creation time in the canonical format below. One entry per
  minute granularity; seconds are not stored.
- **tags** – a set of plain string labels. Case-sensitive (` + "`" + `Work` + "`" + ` and
  ` + "`" + `work` + "`" + ` are distinct). Empty labels are rejected; duplicates collapse.
- **attachments** – arbitrary files stored inside the journal database and
  exported byte-for-byte on demand.
- **parent** – at most one parent entry. Links never form cycles, so the
  journal is always a forest.

## Canonical timestamp format

` + "```" + `
YYYY-MM-DD HH:MM
` + "```" + `

1. Zero-padded, 24-hour clock: ` + "`" + `2025-01-20 09:05` + "`" + `, never ` + "`" + `2025-1-20 9:05` + "`" + `.
2. Lexicographic order of canonical strings equals chronological order.
3. The label ` + "`" + `(UNTAGGED)` + "`" + ` is reserved: passing it to a tag search switches
   the search to untagged-only mode, so never use it as a real tag.

## Tag search modes

- ` + "`" + `any_of` + "`" + ` – entry carries at least one of the listed tags.
- ` + "`" + `at_least` + "`" + ` – entry carries every listed tag (and possibly more).
- ` + "`" + `only` + "`" + ` – entry tag set equals the listed set exactly.
- ` + "`" + `untagged` + "`" + ` – entry carries no tags; the tag list is ignored.
`
