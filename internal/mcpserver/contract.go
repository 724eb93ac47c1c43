package mcpserver

// PostFormatContract describes the post format LLM consumers should follow
// when creating or updating posts.
const PostFormatContract = `# Inkwell Post Format Contract

Every post is a Markdown file below the site's ` + "`" + `content/` + "`" + ` folder, read by a static-site
generator. It MUST follow this structure.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # REQUIRED – shown in listings and the page header
date: 2025-01-15T09:30:00Z          # OPTIONAL – RFC 3339 or YYYY-MM-DD; newest posts list first
draft: true                         # OPTIONAL – boolean; drafts are not published
tags:                               # OPTIONAL – YAML list
  - tag-one
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **The header is a YAML block** between two ` + "`" + `---` + "`" + ` lines, the very first thing in
   the file. A file without a header is treated as body only.
2. **` + "`" + `title` + "`" + ` field is required.** When missing, the file name is shown instead.
3. **` + "`" + `draft` + "`" + `** must be a real boolean (` + "`" + `true` + "`" + `/` + "`" + `false` + "`" + `), not a string.
4. **Values** are scalars, lists of strings, or one level of string-valued mappings.
   Deeper nesting is not preserved by the editor.
5. **File paths** end with ` + "`" + `.md` + "`" + `, use forward slashes and are relative to ` + "`" + `content/` + "`" + `.
6. **Encoding** is UTF-8 with a trailing newline.

## Images

- Upload images via the ` + "`" + `upload_asset` + "`" + ` tool. It returns a ` + "`" + `markdownImage` + "`" + ` field ready to paste into the post body.
- Images are stored in ` + "`" + `static/images/` + "`" + ` and served from ` + "`" + `/images/` + "`" + `.
- Reference them with the absolute path: ` + "`" + `![description](/images/filename.png)` + "`" + `
- Supported formats: png, jpg, jpeg, gif, webp, svg.
- Images no post references are reported as dangling by ` + "`" + `list_assets` + "`" + `.

## Example

` + "```" + `markdown
---
title: Shipping the new theme
date: 2025-01-20
draft: false
tags:
  - design
---

We finally moved to the new theme.

![Front page](/images/1737360000000-front-page.png)
` + "```" + `
`
