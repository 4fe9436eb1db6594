package realtime

import (
	"github.com/chapterhub/backend/internal/authz"
)

// ChannelGlobal carries GLOBAL content to every connection.
const ChannelGlobal = "global"

// EventContentCreated is sent when an event, training or announcement is published.
const EventContentCreated = "content_created"

// ChannelFor returns the channel that content with c's audience is published on.
func ChannelFor(c authz.Content) string {
	switch c.Scope {
	case authz.ScopeCity:
		if c.ChapterID != nil {
			return "chapter:" + c.ChapterID.String()
		}
	case authz.ScopeRegional:
		if c.RegionID != nil {
			return "region:" + c.RegionID.String()
		}
	case authz.ScopeGlobal:
		return ChannelGlobal
	}
	return ""
}

// ChannelsFor returns the channels a user with visibility v listens on. It mirrors
// authz.Visibility.Visible, so a connection receives exactly what its user could list.
func ChannelsFor(v authz.Visibility) []string {
	out := []string{ChannelGlobal}
	for _, id := range v.RegionIDs.Slice() {
		out = append(out, "region:"+id.String())
	}
	for _, id := range v.ChapterIDs.Slice() {
		out = append(out, "chapter:"+id.String())
	}
	return out
}

// ContentNotice is the payload of EventContentCreated.
type ContentNotice struct {
	Kind    string        `json:"kind"`
	Content authz.Content `json:"content"`
	Title   string        `json:"title"`
}

// PublishContent announces new content on its audience channel.
func (h *Hub) PublishContent(kind string, c authz.Content, title string) {
	ch := ChannelFor(c)
	if ch == "" {
		return
	}
	h.Publish(ch, EventContentCreated, ContentNotice{Kind: kind, Content: c, Title: title})
}
