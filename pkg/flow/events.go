package flow

import (
	"github.com/aretw0/loom/pkg/nodetree"
)

// Topic re-exports the bus topic type.
type Topic = nodetree.Topic

// Topics raised on the graph bus. ChildCreated and Destroyed come from the tree.
const (
	TopicAny          = nodetree.Any
	TopicChildCreated = nodetree.ChildCreated
	TopicDestroyed    = nodetree.Destroyed
)

const (
	TopicConnected Topic = nodetree.FirstUserTopic + iota
	TopicDisconnected
	TopicGenericsChanged
	TopicStreamTypeChanged
	TopicTypeChanged
)

// TopicName returns a stable lowercase name for a topic.
func TopicName(t Topic) string {
	switch t {
	case TopicChildCreated:
		return "child_created"
	case TopicDestroyed:
		return "destroyed"
	case TopicConnected:
		return "connected"
	case TopicDisconnected:
		return "disconnected"
	case TopicGenericsChanged:
		return "generics_changed"
	case TopicStreamTypeChanged:
		return "stream_type_changed"
	case TopicTypeChanged:
		return "type_changed"
	default:
		return "unknown"
	}
}

// Event is what collaborators receive. Paths are absolute dot-paths.
type Event struct {
	Topic  Topic
	Path   string
	Peer   string
	Detail string
}

// Handler receives graph events.
type Handler func(Event)

// Subscribe receives events raised anywhere in the graph.
func (g *Graph) Subscribe(topic Topic, h Handler) func() {
	return g.subscribe(g.root, topic, h)
}

func (g *Graph) subscribe(anchor nodetree.ID, topic Topic, h Handler) func() {
	return g.tree.Subscribe(anchor, topic, func(ev nodetree.Event) {
		out := Event{Topic: ev.Topic, Path: g.tree.Path(ev.Origin), Detail: ev.Detail}
		if ev.Topic == TopicConnected || ev.Topic == TopicDisconnected {
			out.Peer = g.tree.Path(ev.Peer)
		}
		h(out)
	})
}

func (g *Graph) emit(topic Topic, origin nodetree.ID, peer nodetree.ID, detail string) {
	g.tree.Emit(nodetree.Event{Topic: topic, Origin: origin, Peer: peer, Detail: detail})
}
