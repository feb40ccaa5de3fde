package jobs

import "strings"

const summaryTemplate = `You are an expert in summarizing podcast content.
Your goal is to create a comprehensive yet concise summary of a podcast episode.
Below you find a portion of the transcript:
--------
{text}
--------
Create a clear and engaging summary that captures:
1. Main topics and key points discussed
2. Important insights or conclusions
3. Any notable quotes or memorable moments
4. Key takeaways for listeners

Keep the summary focused and well-structured.

SUMMARY:
`

const refineTemplate = `You are an expert in summarizing podcast content.
We have provided an existing summary up to a certain point:

EXISTING SUMMARY:
{existing_answer}

Below you find a new portion of the transcript to analyze:
--------
{text}
--------

Please refine the existing summary by:
1. Incorporating new key points and insights
2. Maintaining a coherent narrative flow
3. Avoiding redundancy
4. Preserving important details from the existing summary

If the new context isn't useful or redundant, return the original summary.

REFINED SUMMARY:
`

func summaryPrompt(text string) string {
	return strings.Replace(summaryTemplate, "{text}", text, 1)
}

func refinePrompt(existing, text string) string {
	return strings.NewReplacer("{existing_answer}", existing, "{text}", text).Replace(refineTemplate)
}
