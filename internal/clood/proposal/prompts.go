package proposal

import "fmt"

const codeHelperTemplate = `You are applying a change request to a set of source files and returning the modified contents as JSON.

1. The files are given as a JSON object mapping each file name, relative to the root folder, to its content:
<file_dictionary>
%s
</file_dictionary>

2. The change request is:
<prompt>
%s
</prompt>

3. The root folder is <root_folder>%s</root_folder>. The project layout, with the size and modification time of every file, is:
<project_layout>
%s
</project_layout>

4. Read all the files. Some may not need to change and are only there for context.
   a. Produce the full modified content of every file that needs to change.
   b. If new files are needed, include them. Place them according to the project layout.
   c. Every file name must be relative to the root folder and must stay inside it.
   d. Follow the conventions already used in the files.

5. Format your response as a single fenced code block tagged json containing an object with:
   - "changedFiles": an array of {"filename", "content"} objects for modified existing files
   - "newFiles": an array of {"filename", "content"} objects for files to create
   - "answered": true if you could make the change, otherwise false
   Do not include files that did not change. Escape the contents properly.

Example:

` + "```json" + `
{
  "changedFiles": [
    {"filename": "src/file1.go", "content": "package src\n..."}
  ],
  "newFiles": [
    {"filename": "src/file2.go", "content": "package src\n..."}
  ],
  "answered": true
}
` + "```" + `

6. Set "answered" to true only if you know the answer or can make a well-informed guess. If you
cannot answer, set it to false and leave "changedFiles" and "newFiles" as empty arrays.
`

const promptHelperTemplate = `You help developers write better change requests for an AI code assistant.

The developer wrote this request:
<prompt>
%s
</prompt>

The project layout, with the size and modification time of every file, is:
<project_layout>
%s
</project_layout>

Rewrite the request so that it is specific and unambiguous for this project. Name the files that are
likely to be involved. Keep the developer's intent.

Respond with a single fenced code block tagged json containing an object with:
  - "improvedPrompt": the rewritten request
  - "answered": true if you could improve the request, otherwise false

` + "```json" + `
{"improvedPrompt": "...", "answered": true}
` + "```" + `
`

func formatCodeHelperPrompt(filesDict, prompt, root, layout string) string {
	return fmt.Sprintf(codeHelperTemplate, filesDict, prompt, root, layout)
}

func formatPromptHelperPrompt(prompt, layout string) string {
	return fmt.Sprintf(promptHelperTemplate, prompt, layout)
}
