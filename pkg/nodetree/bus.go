package nodetree

// Topic classifies events on the bus. Packages building on the tree define
// their own topics starting at FirstUserTopic.
type Topic int

const (
	// Any matches every topic when subscribing.
	Any Topic = iota - 1
	// ChildCreated is raised by a new node. Parent is the node it was created under.
	ChildCreated
	// Destroyed is raised by a node after its descendants are gone.
	Destroyed
	// FirstUserTopic is the first value free for other packages.
	FirstUserTopic
)

// Event is the single payload type of the bus.
type Event struct {
	Topic  Topic
	Origin ID
	Parent ID
	// Peer is the second node of a two-sided event, or zero.
	Peer ID
	// Detail is free-form context for logs and collaborators.
	Detail string
}

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id      int
	topic   Topic
	handler Handler
}

// Subscribe anchors h on node anchor. It receives events of topic raised by
// anchor or any of its descendants, including descendants created later.
// The returned func cancels the subscription. Subscriptions die with the anchor.
func (t *Tree[T]) Subscribe(anchor ID, topic Topic, h Handler) func() {
	t.nextSub++
	sub := &subscription{id: t.nextSub, topic: topic, handler: h}
	t.subs[anchor] = append(t.subs[anchor], sub)
	return func() {
		list := t.subs[anchor]
		for i, s := range list {
			if s.id == sub.id {
				t.subs[anchor] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers ev to the handlers anchored on ev.Origin and its ancestors,
// nearest first. Handlers may mutate the tree and emit further events.
func (t *Tree[T]) Emit(ev Event) {
	var targets []Handler
	t.WalkUp(ev.Origin, func(id ID) bool {
		for _, s := range t.subs[id] {
			if s.topic == Any || s.topic == ev.Topic {
				targets = append(targets, s.handler)
			}
		}
		return true
	})
	for _, h := range targets {
		h(ev)
	}
}
