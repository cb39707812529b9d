package scenario

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"green/hal"
	"green/kernel"
)

func mustParse(t *testing.T, src string) *Script {
	t.Helper()
	s, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() err = %v", err)
	}
	return s
}

func runScript(t *testing.T, s *Script) ([]string, error) {
	t.Helper()
	var out hal.LineBuffer
	k := kernel.New(kernel.Config{StackSize: s.StackSize})
	err := s.Run(k, &out)
	return out.Lines(), err
}

func expectTrace(t *testing.T, got, want []string) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("trace =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestPingPongTrace(t *testing.T) {
	s := PingPong()
	if s.Name != "ping-pong" {
		t.Fatalf("Name = %q", s.Name)
	}
	if got := s.Threads(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("Threads() = %v", got)
	}

	want := []string{
		"A: start",
		"A: send ping -> B",
		"A: yield",
		"B: start",
		"B: recv ping <- A",
		"B: send pong -> C",
		"B: yield",
		"C: start",
		"C: recv pong <- B",
		"C: end",
		"A: resumed",
		"A: end",
		"B: done",
		"B: end",
	}
	for i := 0; i < 2; i++ {
		got, err := runScript(t, s)
		if err != nil {
			t.Fatalf("run %d: Run() err = %v", i, err)
		}
		expectTrace(t, got, want)
	}
}

func TestMessageExpansion(t *testing.T) {
	s := mustParse(t, `
[[thread]]
name = "A"
steps = ["sendv B 42", "recv", "print got $msg"]

[[thread]]
name = "B"
steps = ["recv", "send A 'echo $msg'"]
`)
	got, err := runScript(t, s)
	if err != nil {
		t.Fatalf("Run() err = %v", err)
	}
	expectTrace(t, got, []string{
		"A: start",
		"A: send 42 -> B",
		"B: start",
		"B: recv 42 <- A",
		"B: send echo 42 -> A",
		"B: end",
		"A: recv echo 42 <- B",
		"A: got echo 42",
		"A: end",
	})
}

func TestSpawnStep(t *testing.T) {
	s := mustParse(t, `
[[thread]]
name = "consumer"
start = false
steps = ["recv", "print $msg"]

[[thread]]
name = "producer"
steps = ["send consumer hi", "spawn consumer", "send consumer hi"]
`)
	got, err := runScript(t, s)
	if err != nil {
		t.Fatalf("Run() err = %v", err)
	}
	expectTrace(t, got, []string{
		"producer: start",
		"producer: send hi -> consumer failed: not spawned",
		"producer: spawn consumer",
		"producer: send hi -> consumer",
		"producer: end",
		"consumer: start",
		"consumer: recv hi <- producer",
		"consumer: hi",
		"consumer: end",
	})
}

func TestSendToFinishedThread(t *testing.T) {
	s := mustParse(t, `
[[thread]]
name = "short"
steps = []

[[thread]]
name = "late"
steps = ["yield", "send short hello"]
`)
	got, err := runScript(t, s)
	if err != nil {
		t.Fatalf("Run() err = %v", err)
	}
	expectTrace(t, got, []string{
		"short: start",
		"short: end",
		"late: start",
		"late: yield",
		"late: send hello -> short failed: thread terminated",
		"late: end",
	})
}

func TestExitStep(t *testing.T) {
	s := mustParse(t, `
[[thread]]
name = "A"
repeat = 3
steps = ["print a", "exit", "print b"]
`)
	got, err := runScript(t, s)
	if err != nil {
		t.Fatalf("Run() err = %v", err)
	}
	expectTrace(t, got, []string{"A: start", "A: a", "A: exit", "A: end"})
}

func TestStackSteps(t *testing.T) {
	s := mustParse(t, `
[[thread]]
name = "A"
stack_size = 8192
steps = ["push 100", "yield", "pop 60"]

[[thread]]
name = "B"
steps = ["push 7", "pop 7"]
`)
	got, err := runScript(t, s)
	if err != nil {
		t.Fatalf("Run() err = %v", err)
	}
	expectTrace(t, got, []string{
		"A: start",
		"A: push 100 (used 100)",
		"A: yield",
		"B: start",
		"B: push 7 (used 7)",
		"B: pop 7 (used 0)",
		"B: end",
		"A: pop 60 (used 40)",
		"A: end",
	})
}

func TestPopUnderflowIsFatal(t *testing.T) {
	s := mustParse(t, `
[[thread]]
name = "A"
steps = ["pop 1"]
`)
	var out hal.LineBuffer
	err := s.Run(kernel.New(kernel.Config{}), &out)
	var pe *kernel.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Run() err = %v, want *kernel.PanicError", err)
	}
}

func TestDeadlockedScenario(t *testing.T) {
	s := mustParse(t, `
[[thread]]
name = "A"
steps = ["recv"]

[[thread]]
name = "B"
steps = ["send A one", "recv"]
`)
	got, err := runScript(t, s)
	if !errors.Is(err, kernel.ErrDeadlock) {
		t.Fatalf("Run() err = %v, want ErrDeadlock", err)
	}
	expectTrace(t, got, []string{
		"A: start",
		"B: start",
		"B: send one -> A",
		"A: recv one <- B",
		"A: end",
	})
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want error
	}{
		{"empty", `name = "x"`, ErrNoThreads},
		{"syntax", `[[thread]` + "\n", ErrInvalid},
		{"unknown key", "[[thread]]\nname = \"A\"\ncolor = 1\n", ErrInvalid},
		{"no name", "[[thread]]\nsteps = []\n", ErrInvalid},
		{"duplicate", "[[thread]]\nname = \"A\"\n[[thread]]\nname = \"A\"\n", ErrDuplicate},
		{"unknown op", "[[thread]]\nname = \"A\"\nsteps = [\"jump\"]\n", ErrUnknownOp},
		{"unknown target", "[[thread]]\nname = \"A\"\nsteps = [\"send B x\"]\n", ErrNoSuchName},
		{"missing text", "[[thread]]\nname = \"A\"\nsteps = [\"send A\"]\n", ErrBadArgs},
		{"bad value", "[[thread]]\nname = \"A\"\nsteps = [\"sendv A -1\"]\n", ErrBadArgs},
		{"bad size", "[[thread]]\nname = \"A\"\nsteps = [\"push 0\"]\n", ErrBadArgs},
		{"extra args", "[[thread]]\nname = \"A\"\nsteps = [\"yield now\"]\n", ErrBadArgs},
		{"unterminated quote", "[[thread]]\nname = \"A\"\nsteps = [\"print 'x\"]\n", ErrBadArgs},
		{"negative repeat", "[[thread]]\nname = \"A\"\nrepeat = -1\n", ErrInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src))
			if !errors.Is(err, tc.want) {
				t.Fatalf("Parse() err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTestdataScenariosReproducible(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no testdata scenarios")
	}
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := Load(path)
			if err != nil {
				t.Fatalf("Load() err = %v", err)
			}
			first, err := runScript(t, s)
			if err != nil {
				t.Fatalf("Run() err = %v", err)
			}
			second, err := runScript(t, s)
			if err != nil {
				t.Fatalf("second Run() err = %v", err)
			}
			expectTrace(t, second, first)
			for _, name := range s.Threads() {
				if containsLine(first, name+": start") && !containsLine(first, name+": end") {
					t.Errorf("thread %s started but never ended", name)
				}
			}
		})
	}
}

func TestProducerConsumerTrace(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "producer_consumer.toml"))
	if err != nil {
		t.Fatalf("Load() err = %v", err)
	}
	got, err := runScript(t, s)
	if err != nil {
		t.Fatalf("Run() err = %v", err)
	}

	var received []string
	for _, line := range got {
		if rest, ok := strings.CutPrefix(line, "consumer: received "); ok {
			received = append(received, rest)
		}
	}
	if want := []string{"0", "1", "2", "3", "4"}; !reflect.DeepEqual(received, want) {
		t.Fatalf("received %v, want %v", received, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("Load() err = nil for missing file")
	}
}

func containsLine(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}
