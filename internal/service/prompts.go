package service

const answerSystemPrompt = `You are a helpful assistant that answers user questions. You will use any context
provided and answer the questions as truthfully as possible. You will provide your
response in 100 words or less.`

// fullTextUserPrompt takes the episode title, the question and the transcript.
const fullTextUserPrompt = `The input enclosed in backticks is the transcript of a podcast with the title %q.
Based on this transcript and in keeping with your role as a helpful assistant,
please answer the question %q from a user. You will ignore any parts of the
transcript that are not relevant to the core topic such as ad reads.
` + "`%s`"

// ragUserPrompt takes the question and the retrieved context lines.
const ragUserPrompt = `Based on the context enclosed in backticks below and in keeping with your role as
a helpful assistant, please answer the question %q from a user. Along with the
response, you will also return the episodes and timecodes from where you got context
inputs. You will ignore any parts of the context that are not relevant to the question
such as ad reads.
` + "`%s`"

// ragContextLine takes the episode id, title, timecode and chunk text.
const ragContextLine = "Episode ID %d with the title %s at the timecode %s provides the context #%s#\n"
