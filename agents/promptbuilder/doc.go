/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package promptbuilder builds the judge, extraction and verification prompts
that aim sends to language models.

Templates are developer-owned string literals with {{name}} placeholders.
Evaluated content (candidate answers, claims, fetched reference chunks) is
never spliced in as raw text: it is bound through an encoder (XML, JSON or
YAML) so that the model sees it as data rather than instructions.

	var p = promptbuilder.MustNewPrompt(`Judge this answer.
	{{answer}}`)

	bound, err := p.BindXML("answer", struct {
		XMLName struct{} `xml:"answer"`
		Text    string   `xml:",chardata"`
	}{Text: candidate})
	if err != nil {
		return err
	}
	text, err := bound.Build()

Prompts are immutable: every Bind call returns a new Prompt, so package level
templates can be shared across goroutines. Substitution happens in a single
pass, so bound content containing "{{...}}" is never expanded again.
*/
package promptbuilder
