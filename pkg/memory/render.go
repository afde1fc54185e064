package memory

import (
	"fmt"
	"strings"
)

// RenderActivity turns one activity into a natural-language episode line of
// the form "<agent>: <verb phrase>", carrying quoted content and referenced
// author names so the extractor sees full context.
func RenderActivity(a AgentActivity) string {
	name := a.AgentName
	if name == "" {
		name = fmt.Sprintf("agent %d", a.AgentID)
	}

	content := stringArg(a.Args, "content")
	target := firstStringArg(a.Args, "author", "author_name", "target_user", "username")

	var phrase string
	switch strings.ToLower(a.ActionType) {
	case "create_post", "post", "create_tweet":
		phrase = fmt.Sprintf("posted: %q", content)
	case "create_comment", "comment", "reply":
		if target != "" {
			phrase = fmt.Sprintf("commented on %s's post: %q", target, content)
		} else {
			phrase = fmt.Sprintf("commented: %q", content)
		}
	case "repost", "retweet", "share":
		if target != "" {
			phrase = fmt.Sprintf("reposted %s's post %q", target, content)
		} else {
			phrase = fmt.Sprintf("reposted %q", content)
		}
	case "like_post", "like", "upvote":
		if target != "" {
			phrase = fmt.Sprintf("liked %s's post %q", target, content)
		} else {
			phrase = fmt.Sprintf("liked a post %q", content)
		}
	case "dislike_post", "dislike", "downvote":
		if target != "" {
			phrase = fmt.Sprintf("disliked %s's post %q", target, content)
		} else {
			phrase = fmt.Sprintf("disliked a post %q", content)
		}
	case "follow":
		phrase = fmt.Sprintf("followed %s", target)
	case "unfollow":
		phrase = fmt.Sprintf("unfollowed %s", target)
	default:
		if content != "" {
			phrase = fmt.Sprintf("performed %s: %q", a.ActionType, content)
		} else {
			phrase = fmt.Sprintf("performed %s", a.ActionType)
		}
	}
	return fmt.Sprintf("[%s round %d] %s: %s", a.Platform, a.Round, name, phrase)
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return s
}

func firstStringArg(args map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringArg(args, k); s != "" {
			return s
		}
	}
	return ""
}
