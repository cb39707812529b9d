// Package scenario describes actor programs in TOML and runs them as kernel
// threads, writing one trace line per event.
//
// A scenario file lists threads; each thread is a sequence of steps such as
// "send B ping" or "recv". Because scheduling is deterministic, the trace of a
// scenario is identical on every run.
package scenario

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/pelletier/go-toml/v2"
)

var (
	ErrInvalid    = errors.New("scenario: invalid")
	ErrNoThreads  = errors.New("scenario: no threads")
	ErrDuplicate  = errors.New("scenario: duplicate thread")
	ErrUnknownOp  = errors.New("scenario: unknown step")
	ErrBadArgs    = errors.New("scenario: bad step arguments")
	ErrNoSuchName = errors.New("scenario: no such thread")
)

//go:embed pingpong.toml
var pingPongTOML []byte

// Scenario is the file format.
type Scenario struct {
	Name      string   `toml:"name"`
	StackSize int      `toml:"stack_size"`
	Threads   []Thread `toml:"thread"`
}

// Thread is one [[thread]] table.
type Thread struct {
	Name      string   `toml:"name"`
	Steps     []string `toml:"steps"`
	Repeat    int      `toml:"repeat"`
	Start     *bool    `toml:"start"`
	StackSize int      `toml:"stack_size"`
}

type opcode uint8

const (
	opPrint opcode = iota + 1
	opSend
	opSendValue
	opRecv
	opYield
	opSpawn
	opExit
	opPush
	opPop
)

var opcodes = map[string]opcode{
	"print": opPrint,
	"send":  opSend,
	"sendv": opSendValue,
	"recv":  opRecv,
	"yield": opYield,
	"spawn": opSpawn,
	"exit":  opExit,
	"push":  opPush,
	"pop":   opPop,
}

type step struct {
	op     opcode
	target int
	text   string
	n      int
	value  uint64
}

type program struct {
	name   string
	index  int
	steps  []step
	repeat int
	start  bool
	stack  int
}

// Script is a parsed and validated scenario, ready to run any number of times.
type Script struct {
	Name      string
	StackSize int

	threads []program
}

// PingPong returns the built-in three-thread ping-pong scenario.
func PingPong() *Script {
	s, err := Parse(pingPongTOML)
	if err != nil {
		panic(err)
	}
	return s
}

// Load reads and parses a scenario file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a scenario. Unknown keys are rejected.
func Parse(data []byte) (*Script, error) {
	var sc Scenario
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sc); err != nil {
		var de *toml.DecodeError
		if errors.As(err, &de) {
			row, col := de.Position()
			return nil, fmt.Errorf("%w: line %d column %d: %s", ErrInvalid, row, col, de.String())
		}
		var sme *toml.StrictMissingError
		if errors.As(err, &sme) {
			return nil, fmt.Errorf("%w: unknown key\n%s", ErrInvalid, sme.String())
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return Compile(sc)
}

// Compile validates sc and resolves thread references.
func Compile(sc Scenario) (*Script, error) {
	if len(sc.Threads) == 0 {
		return nil, ErrNoThreads
	}
	if sc.StackSize < 0 {
		return nil, fmt.Errorf("%w: stack_size %d", ErrInvalid, sc.StackSize)
	}

	index := make(map[string]int, len(sc.Threads))
	for i, th := range sc.Threads {
		if th.Name == "" {
			return nil, fmt.Errorf("%w: thread %d has no name", ErrInvalid, i+1)
		}
		if _, dup := index[th.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, th.Name)
		}
		index[th.Name] = i
	}

	s := &Script{Name: sc.Name, StackSize: sc.StackSize}
	if s.Name == "" {
		s.Name = "unnamed"
	}
	for i, th := range sc.Threads {
		p := program{name: th.Name, index: i, repeat: th.Repeat, start: true, stack: th.StackSize}
		if p.repeat == 0 {
			p.repeat = 1
		}
		if p.repeat < 0 {
			return nil, fmt.Errorf("%w: thread %q: repeat %d", ErrInvalid, th.Name, th.Repeat)
		}
		if p.stack < 0 {
			return nil, fmt.Errorf("%w: thread %q: stack_size %d", ErrInvalid, th.Name, th.StackSize)
		}
		if th.Start != nil {
			p.start = *th.Start
		}
		for j, raw := range th.Steps {
			st, err := compileStep(raw, index)
			if err != nil {
				return nil, fmt.Errorf("thread %q step %d: %w", th.Name, j+1, err)
			}
			p.steps = append(p.steps, st)
		}
		s.threads = append(s.threads, p)
	}
	return s, nil
}

func compileStep(raw string, index map[string]int) (step, error) {
	args, err := shlex.Split(raw)
	if err != nil {
		return step{}, fmt.Errorf("%w: %q: %v", ErrBadArgs, raw, err)
	}
	if len(args) == 0 {
		return step{}, fmt.Errorf("%w: empty step", ErrUnknownOp)
	}
	op, ok := opcodes[args[0]]
	if !ok {
		return step{}, fmt.Errorf("%w: %q", ErrUnknownOp, args[0])
	}
	args = args[1:]

	st := step{op: op, target: -1}
	want := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s takes %d argument(s), got %d", ErrBadArgs, raw, n, len(args))
		}
		return nil
	}
	target := func(name string) error {
		i, ok := index[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrNoSuchName, name)
		}
		st.target = i
		return nil
	}

	switch op {
	case opPrint:
		if len(args) == 0 {
			return step{}, fmt.Errorf("%w: print needs text", ErrBadArgs)
		}
		st.text = strings.Join(args, " ")
	case opSend:
		if len(args) < 2 {
			return step{}, fmt.Errorf("%w: send needs a thread and text", ErrBadArgs)
		}
		if err := target(args[0]); err != nil {
			return step{}, err
		}
		st.text = strings.Join(args[1:], " ")
	case opSendValue:
		if err := want(2); err != nil {
			return step{}, err
		}
		if err := target(args[0]); err != nil {
			return step{}, err
		}
		v, err := strconv.ParseUint(args[1], 0, 64)
		if err != nil {
			return step{}, fmt.Errorf("%w: sendv value %q", ErrBadArgs, args[1])
		}
		st.value = v
	case opSpawn:
		if err := want(1); err != nil {
			return step{}, err
		}
		if err := target(args[0]); err != nil {
			return step{}, err
		}
	case opPush, opPop:
		if err := want(1); err != nil {
			return step{}, err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return step{}, fmt.Errorf("%w: %s size %q", ErrBadArgs, raw, args[0])
		}
		st.n = n
	default:
		if err := want(0); err != nil {
			return step{}, err
		}
	}
	return st, nil
}

// Threads returns the declared thread names in file order.
func (s *Script) Threads() []string {
	names := make([]string, len(s.threads))
	for i, p := range s.threads {
		names[i] = p.name
	}
	return names
}
