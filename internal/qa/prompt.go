package qa

// NotFoundAnswer is returned when no passage matches the question.
const NotFoundAnswer = "This information wasn't found in available transcripts"

const systemPrompt = `You are a helpful assistant that answers questions about podcast content based on transcript segments.
Only use the information provided in the context. If you cannot find the answer in the context, say "This information wasn't found in available transcripts."
Always include episode and podcast titles in your answer, and cite timestamps in [HH:MM] format.
Limit your response to the top 3 most relevant segments.

Format your response as a JSON object with the following structure:
{
  "answer": "Your answer here, citing timestamps like [23:15] when referencing content",
  "relevantSegments": [
    {
      "timestamp": "[HH:MM]",
      "context": "The relevant transcript segment",
      "episodeTitle": "Episode title",
      "podcastTitle": "Podcast title"
    }
  ]
}`

const maxRelevantSegments = 3
