/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"chainguard.dev/aim/agents/promptbuilder"
	"chainguard.dev/aim/agents/schema"
)

var claimsPrompt = promptbuilder.MustNewPrompt(`<task>
Break the content below into atomic factual claims.
</task>

{{content}}

<instructions>
1. A claim states exactly one fact that can be checked on its own
2. Resolve pronouns so each claim is understandable without the others
3. Keep the order in which the facts appear in the content
4. Skip opinions, greetings, questions and instructions
5. Do not add facts that the content does not state
</instructions>

<output_format>
Return a JSON object with this structure:
{
  "claims": ["claim 1", "claim 2", ...]
}

Return an empty list when the content contains no factual claims.
</output_format>

Respond with only the JSON object, no additional text.`)

var criterionPrompt = promptbuilder.MustNewPrompt(`<task>
Decide whether the content satisfies the criterion.
</task>

{{content}}

{{criterion}}

<instructions>
1. Judge the content solely against the criterion
2. The criterion is met only if it is met fully; partial compliance is a failure
3. Explain the decision in one or two sentences
</instructions>

<output_format>
Return a JSON object with this structure:
{
  "result": true or false,
  "reasoning": "why the criterion is or is not met"
}
</output_format>

Respond with only the JSON object, no additional text.`)

var verificationPrompt = promptbuilder.MustNewPrompt(`<task>
Verify each claim against the reference material.
</task>

{{reference}}

{{claims}}

<instructions>
1. Use only the reference material; ignore your own knowledge
2. A claim is valid only if the reference states or directly implies it
3. A claim the reference does not mention is not valid
4. Quote the supporting passage as evidence, or leave evidence empty
5. Return exactly one result per claim, in the order the claims are given
</instructions>

<output_format>
Return a JSON object with this structure:
{
  "results": [
    {
      "claim": "the claim, verbatim",
      "validity": true or false,
      "reasoning": "why the reference does or does not support it",
      "evidence": "quoted passage or empty string"
    }
  ]
}
</output_format>

Respond with only the JSON object, no additional text.`)

var retrievalPrompt = promptbuilder.MustNewPrompt(`<task>
Gather reference material that can confirm or refute the query.
</task>

{{query}}

{{tools}}

<instructions>
1. Call the available tools to look up information relevant to the query
2. Prefer primary records over summaries
3. When you are done, call return_record exactly once with the relevant records
4. Call return_record with null when nothing relevant was found
</instructions>`)

type claimsRequest struct {
	Content string
}

func (r *claimsRequest) Bind(prompt *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	return prompt.BindXML("content", struct {
		XMLName struct{} `xml:"content"`
		Content string   `xml:",chardata"`
	}{Content: r.Content})
}

type claimList struct {
	Claims []string `json:"claims" jsonschema:"required" jsonschema_description:"Atomic claims in order of appearance"`
}

type criterionRequest struct {
	Content   string
	Criterion string
}

func (r *criterionRequest) Bind(prompt *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	prompt, err := prompt.BindXML("content", struct {
		XMLName struct{} `xml:"content"`
		Content string   `xml:",chardata"`
	}{Content: r.Content})
	if err != nil {
		return nil, err
	}
	return prompt.BindXML("criterion", struct {
		XMLName struct{} `xml:"criterion"`
		Content string   `xml:",chardata"`
	}{Content: r.Criterion})
}

type criterionVerdict struct {
	Result    bool   `json:"result" jsonschema:"required"`
	Reasoning string `json:"reasoning" jsonschema:"required"`
}

type indexed struct {
	Index   int    `xml:"index,attr"`
	Content string `xml:",chardata"`
}

func enumerate(items []string) []indexed {
	out := make([]indexed, len(items))
	for i, s := range items {
		out[i] = indexed{Index: i + 1, Content: s}
	}
	return out
}

type verificationRequest struct {
	Claims []string
	Chunks []string
}

func (r *verificationRequest) Bind(prompt *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	prompt, err := prompt.BindXML("reference", struct {
		XMLName struct{}  `xml:"reference"`
		Chunks  []indexed `xml:"chunk"`
	}{Chunks: enumerate(r.Chunks)})
	if err != nil {
		return nil, err
	}
	return prompt.BindXML("claims", struct {
		XMLName struct{}  `xml:"claims"`
		Claims  []indexed `xml:"claim"`
	}{Claims: enumerate(r.Claims)})
}

type verification struct {
	Results []ClaimVerdict `json:"results" jsonschema:"required"`
}

type retrievalRequest struct {
	Query string
	Tools []string
}

func (r *retrievalRequest) Bind(prompt *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	prompt, err := prompt.BindXML("query", struct {
		XMLName struct{} `xml:"query"`
		Content string   `xml:",chardata"`
	}{Content: r.Query})
	if err != nil {
		return nil, err
	}
	return prompt.BindXML("tools", struct {
		XMLName struct{} `xml:"available_tools"`
		Names   []string `xml:"tool"`
	}{Names: r.Tools})
}

// Response schemas for providers with native structured output.
var (
	claimListSchema        = schema.MustMap[claimList]()
	criterionVerdictSchema = schema.MustMap[criterionVerdict]()
	verificationSchema     = schema.MustMap[verification]()
)
