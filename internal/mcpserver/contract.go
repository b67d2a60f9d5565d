package mcpserver

// VaultLayout describes how the archive vault is organised, so LLM clients
// can navigate notes and follow links between them.
const VaultLayout = `# birbbrain Vault Layout

The vault is a tree of Markdown notes written by the archiver. Paths are
relative to the vault root and use forward slashes.

## Directories

| Directory      | Contents                                                  |
|----------------|-----------------------------------------------------------|
| ` + "`Tweets/`" + `      | One note per archived thread: ` + "`<date> - <author> - <summary>.md`" + ` |
| ` + "`Media/Images/`" + ` | Images attached to posts                                  |
| ` + "`Media/Videos/`" + ` | Videos attached to posts                                  |
| ` + "`GitHub/`" + `      | One note per repository: ` + "`<repo>.md`" + `                       |
| ` + "`Substack/`" + `    | One note per article, named after its title               |
| ` + "`arXiv/`" + `       | ` + "`<title> - <id>.md`" + ` plus the paper PDF                    |

## Thread notes

- YAML frontmatter: ` + "`title`, `author`, `date`, `post_id`, `tags`" + `.
- One ` + "`### <author> - <time>`" + ` section per post, oldest first.
- Media are embedded as ` + "`![[Media/Images/<file>]]`" + `.
- Each archived link adds a line at the end of the note:
  ` + "`GitHub: [[GitHub/<repo>.md]]`" + `, ` + "`Article: [[Substack/<title>.md]]`" + ` or
  ` + "`Paper: [[arXiv/<title> - <id>.md]]`" + `.

## Finding related notes

- ` + "`get_backlinks`" + ` on a repository, article or paper note lists the threads
  that referenced it.
- ` + "`list_notes`" + ` filters by kind: thread, repository, article, paper.
- Links that could not be classified are collected in ` + "`unprocessed_links.txt`" + `.
`
