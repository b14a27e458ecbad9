// Package prompt assembles generation prompts from the persona summary,
// current activity, post history, and feed content. Templates use
// {placeholder} markers and can be overridden per template via config.
package prompt

import (
	"fmt"
	"strings"

	"github.com/internetsb/maizone/internal/qzone"
	"github.com/internetsb/maizone/internal/storage"
)

const defaultMaxHistoryTokens = 1000

// Default templates. Placeholders are substituted verbatim; unknown
// placeholders in an override are left as-is.
const (
	defaultPostTemplate = `{persona}
{history}请以"{topic}"为主题写一条QQ空间说说，直接输出说说内容，不要带引号。`

	defaultCommentTemplate = `{persona}
你正在浏览QQ空间，看到了{owner}发布的说说：
{content}
请写一条合适的评论，直接输出评论内容。`

	defaultReplyTemplate = `{persona}
{commenter}在你发布的说说「{content}」下评论道：
{comment}
请写一条回复，直接输出回复内容。`

	defaultDecideTemplate = `你现在正在进行的活动：{activity}。
请判断当前是否适合暂停手头的事，去{action}。
只回答"是"或"否"。`

	defaultDiaryTemplate = `{persona}
今天是{date}，你今天的活动：
{activities}
{history}请以第一人称写一篇今天的日记，{words}字左右，直接输出日记内容。`
)

var defaultTemplates = map[string]string{
	"post":    defaultPostTemplate,
	"comment": defaultCommentTemplate,
	"reply":   defaultReplyTemplate,
	"decide":  defaultDecideTemplate,
	"diary":   defaultDiaryTemplate,
}

// Builder renders prompts. Overrides map a template name ("post", "comment",
// "reply", "decide", "diary") to a custom template string.
type Builder struct {
	overrides        map[string]string
	maxHistoryTokens int
}

// NewBuilder creates a Builder. If maxHistoryTokens <= 0, the default (1000)
// is used.
func NewBuilder(overrides map[string]string, maxHistoryTokens int) *Builder {
	if maxHistoryTokens <= 0 {
		maxHistoryTokens = defaultMaxHistoryTokens
	}
	return &Builder{overrides: overrides, maxHistoryTokens: maxHistoryTokens}
}

func (b *Builder) template(name string) string {
	if b.overrides != nil {
		if t, ok := b.overrides[name]; ok && t != "" {
			return t
		}
	}
	return defaultTemplates[name]
}

// Post builds a prompt for writing a new feed on the given topic.
func (b *Builder) Post(personaSummary, topic string, history []storage.Post) string {
	return render(b.template("post"), map[string]string{
		"persona": personaSummary,
		"topic":   topic,
		"history": b.historySection(history),
	})
}

// Comment builds a prompt for commenting on someone else's feed.
func (b *Builder) Comment(personaSummary string, feed qzone.Feed) string {
	return render(b.template("comment"), map[string]string{
		"persona": personaSummary,
		"owner":   ownerLabel(feed),
		"content": feedText(feed),
	})
}

// Reply builds a prompt for replying to a comment under the bot's own feed.
func (b *Builder) Reply(personaSummary string, feed qzone.Feed, c qzone.Comment) string {
	commenter := c.AuthorName
	if commenter == "" {
		commenter = c.AuthorID
	}
	return render(b.template("reply"), map[string]string{
		"persona":   personaSummary,
		"content":   feedText(feed),
		"commenter": commenter,
		"comment":   c.Content,
	})
}

// Decide builds the yes/no gate prompt for an action ("发说说", "浏览空间").
func (b *Builder) Decide(activity, action string) string {
	return render(b.template("decide"), map[string]string{
		"activity": activity,
		"action":   action,
	})
}

// Diary builds a prompt for generating the daily diary.
func (b *Builder) Diary(personaSummary, date string, activities []string, history []storage.Post, words int) string {
	acts := "（没有记录）"
	if len(activities) > 0 {
		acts = "- " + strings.Join(activities, "\n- ")
	}
	if words <= 0 {
		words = 300
	}
	return render(b.template("diary"), map[string]string{
		"persona":    personaSummary,
		"date":       date,
		"activities": acts,
		"history":    b.historySection(history),
		"words":      fmt.Sprintf("%d", words),
	})
}

// historySection formats recent posts for injection, newest first, dropping
// entries once the token budget is spent. Empty history renders to "".
func (b *Builder) historySection(history []storage.Post) string {
	if len(history) == 0 {
		return ""
	}

	remaining := b.maxHistoryTokens
	var entries []string
	for _, p := range history {
		entry := fmt.Sprintf("- %s\n", p.Content)
		tokens := estimateTokens(entry)
		if tokens > remaining {
			continue
		}
		entries = append(entries, entry)
		remaining -= tokens
	}
	if len(entries) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("你最近发过的说说（不要重复类似内容）：\n")
	for _, e := range entries {
		sb.WriteString(e)
	}
	return sb.String()
}

func ownerLabel(feed qzone.Feed) string {
	if feed.OwnerName != "" {
		return feed.OwnerName
	}
	return feed.OwnerID
}

func feedText(feed qzone.Feed) string {
	text := feed.Content
	if feed.Forwarded != "" {
		text += "\n（转发内容：" + feed.Forwarded + "）"
	}
	if n := len(feed.Images); n > 0 {
		text += fmt.Sprintf("\n（附%d张图片）", n)
	}
	return text
}

// render substitutes {name} markers in the template.
func render(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// estimateTokens provides a rough token count using 4 chars per token.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
