package kernel

// Message is a mailbox envelope. Data is an opaque copy owned by the receiver.
type Message struct {
	From ThreadID
	To   ThreadID
	Kind uint16
	Data []byte
}

// SendResult describes the outcome of a send attempt.
type SendResult uint8

const (
	SendOK SendResult = iota
	SendErrNoThread
	SendErrTerminated
	SendErrPayloadTooLarge
)

func (r SendResult) String() string {
	switch r {
	case SendOK:
		return "ok"
	case SendErrNoThread:
		return "no such thread"
	case SendErrTerminated:
		return "thread terminated"
	case SendErrPayloadTooLarge:
		return "payload too large"
	default:
		return "unknown"
	}
}

// mailbox is one thread's unbounded, per-destination FIFO.
type mailbox struct {
	q ring[Message]
}

func (mb *mailbox) push(msg Message) { mb.q.push(msg) }

func (mb *mailbox) pop() (Message, bool) { return mb.q.pop() }

func (mb *mailbox) len() int { return mb.q.len() }

// mailbox returns the mailbox for id, creating it on first reference.
func (k *Kernel) mailbox(id ThreadID) *mailbox {
	mb := k.mailboxes[id]
	if mb == nil {
		mb = &mailbox{}
		k.mailboxes[id] = mb
	}
	return mb
}

func (k *Kernel) send(from, to ThreadID, kind uint16, payload []byte) SendResult {
	if limit := k.cfg.MaxMessageBytes; limit > 0 && len(payload) > limit {
		return SendErrPayloadTooLarge
	}
	target, ok := k.contexts[to]
	if !ok || to == MainID {
		if to != MainID && to < k.nextID {
			k.stats.Dropped++
			k.tracef("drop %d -> %d: terminated", from, to)
			return SendErrTerminated
		}
		return SendErrNoThread
	}

	msg := Message{From: from, To: to, Kind: kind}
	if len(payload) > 0 {
		msg.Data = make([]byte, len(payload))
		copy(msg.Data, payload)
	}
	k.mailbox(to).push(msg)
	k.stats.Sent++

	if _, waiting := k.waiting[to]; waiting {
		delete(k.waiting, to)
		target.state = StateReady
		k.runq.push(to)
		k.stats.Wakeups++
		k.tracef("wake %d", to)
	}
	return SendOK
}

func (k *Kernel) tryRecv(c *Context) (Message, bool) {
	msg, ok := k.mailbox(c.id).pop()
	if ok {
		k.stats.Received++
	}
	return msg, ok
}

func (k *Kernel) recv(c *Context) Message {
	for {
		if msg, ok := k.tryRecv(c); ok {
			return msg
		}
		k.waiting[c.id] = struct{}{}
		c.state = StateBlocked
		k.stats.Blocks++
		k.tracef("block %d", c.id)
		k.schedule()
	}
}
