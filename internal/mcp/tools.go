package mcp

import "github.com/mark3labs/mcp-go/mcp"

var listEpisodesToolDef = mcp.NewTool("list_episodes",
	mcp.WithDescription("List the newest transcribed episodes of a podcast"),
	mcp.WithNumber("podcast_id", mcp.Required(), mcp.Description("Podcast ID")),
	mcp.WithNumber("limit", mcp.Description("Maximum episodes to return (default 15)")),
)

var searchToolDef = mcp.NewTool("search_transcripts",
	mcp.WithDescription("Find transcript passages semantically similar to a query"),
	mcp.WithNumber("podcast_id", mcp.Required(), mcp.Description("Podcast ID")),
	mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
	mcp.WithNumber("episode_id", mcp.Description("Restrict the search to one episode")),
	mcp.WithNumber("limit", mcp.Description("Maximum passages to return (default 5)")),
)

var askToolDef = mcp.NewTool("ask_episode",
	mcp.WithDescription("Answer a question from podcast transcripts"),
	mcp.WithNumber("podcast_id", mcp.Required(), mcp.Description("Podcast ID")),
	mcp.WithString("question", mcp.Required(), mcp.Description("The listener question")),
	mcp.WithNumber("episode_id", mcp.Description("Episode ID, required for the fulltext mode")),
	mcp.WithString("mode", mcp.Description("Answer strategy"), mcp.Enum("fulltext", "rag")),
)

var embedToolDef = mcp.NewTool("embed_episode",
	mcp.WithDescription("Chunk and embed the stored transcript of an episode"),
	mcp.WithNumber("podcast_id", mcp.Required(), mcp.Description("Podcast ID")),
	mcp.WithNumber("episode_id", mcp.Required(), mcp.Description("Episode ID")),
	mcp.WithBoolean("replace", mcp.Description("Delete the episode's previous records first")),
)
