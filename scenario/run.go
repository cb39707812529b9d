package scenario

import (
	"bytes"
	"fmt"
	"strings"

	"green/hal"
	"green/kernel"
	"green/proto"
)

const msgVar = "$msg"

// run is the state shared by the threads of one scenario execution. Only the
// running thread touches it.
type run struct {
	s     *Script
	out   hal.Logger
	ids   []kernel.ThreadID
	names map[kernel.ThreadID]string
}

// Run executes the script on k, writing the trace to out. It returns the
// kernel's Run error.
func (s *Script) Run(k *kernel.Kernel, out hal.Logger) error {
	return k.Run(s.Root(out))
}

// Root returns the task that spawns every start thread in file order.
func (s *Script) Root(out hal.Logger) kernel.Task {
	r := &run{
		s:     s,
		out:   out,
		ids:   make([]kernel.ThreadID, len(s.threads)),
		names: map[kernel.ThreadID]string{kernel.MainID: "main"},
	}
	return kernel.TaskFunc(func(ctx *kernel.Context) {
		r.names[ctx.ID()] = "root"
		for i := range s.threads {
			if s.threads[i].start {
				r.spawn(ctx, i)
			}
		}
	})
}

func (r *run) logf(p *program, format string, args ...any) {
	r.out.WriteLineString(p.name + ": " + fmt.Sprintf(format, args...))
}

// spawn starts a new instance of thread i. Later sends to its name reach the
// newest instance.
func (r *run) spawn(ctx *kernel.Context, i int) kernel.ThreadID {
	p := &r.s.threads[i]
	id := ctx.SpawnStack(kernel.TaskFunc(func(ctx *kernel.Context) {
		r.exec(ctx, p)
	}), p.stack)
	r.ids[i] = id
	r.names[id] = p.name
	return id
}

func (r *run) exec(ctx *kernel.Context, p *program) {
	r.logf(p, "start")
	last := ""
	fill := byte(p.index + 1)

	for rep := 0; rep < p.repeat; rep++ {
		for _, st := range p.steps {
			switch st.op {
			case opPrint:
				r.logf(p, "%s", expand(st.text, last))
			case opSend:
				text := expand(st.text, last)
				r.send(ctx, p, st.target, proto.MsgText, proto.TextPayload(text), text)
			case opSendValue:
				r.send(ctx, p, st.target, proto.MsgValue, proto.ValuePayload(st.value), fmt.Sprint(st.value))
			case opRecv:
				msg := ctx.Recv()
				last = proto.Format(proto.Kind(msg.Kind), msg.Data)
				r.logf(p, "recv %s <- %s", last, r.name(msg.From))
			case opYield:
				r.logf(p, "yield")
				ctx.Yield()
			case opSpawn:
				r.logf(p, "spawn %s", r.s.threads[st.target].name)
				r.spawn(ctx, st.target)
			case opExit:
				r.logf(p, "exit")
				r.logf(p, "end")
				ctx.Exit()
			case opPush:
				stk := ctx.Stack()
				stk.Push(bytes.Repeat([]byte{fill}, st.n))
				r.logf(p, "push %d (used %d)", st.n, stk.Used())
			case opPop:
				stk := ctx.Stack()
				b := stk.Pop(st.n)
				for i, c := range b {
					if c != fill {
						panic(fmt.Sprintf("%s: stack corrupted at offset %d", p.name, i))
					}
				}
				r.logf(p, "pop %d (used %d)", st.n, stk.Used())
			}
		}
	}
	r.logf(p, "end")
}

func (r *run) send(ctx *kernel.Context, p *program, target int, kind proto.Kind, payload []byte, shown string) {
	to := r.s.threads[target].name
	id := r.ids[target]
	if id == 0 {
		r.logf(p, "send %s -> %s failed: not spawned", shown, to)
		return
	}
	if res := ctx.SendResult(id, uint16(kind), payload); res != kernel.SendOK {
		r.logf(p, "send %s -> %s failed: %s", shown, to, res)
		return
	}
	r.logf(p, "send %s -> %s", shown, to)
}

func (r *run) name(id kernel.ThreadID) string {
	if n, ok := r.names[id]; ok {
		return n
	}
	return fmt.Sprintf("#%d", id)
}

func expand(text, last string) string {
	if !strings.Contains(text, msgVar) {
		return text
	}
	return strings.ReplaceAll(text, msgVar, last)
}
