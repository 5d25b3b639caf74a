/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package googleexecutor runs a prompt against a Gemini model and decodes the
JSON answer into a typed response.

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
	    APIKey:  key,
	    Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
	    return err
	}

	exec, err := googleexecutor.New[*Request, *Verdict](
	    client,
	    prompt,
	    googleexecutor.WithModel[*Request, *Verdict]("gemini-2.5-flash"),
	    googleexecutor.WithResponseMIMEType[*Request, *Verdict]("application/json"),
	)

The executor keeps a chat session for the duration of one Execute call so
that tool results are threaded back to the model. Malformed function calls
are answered with a request to try again using the declared functions.
*/
package googleexecutor
