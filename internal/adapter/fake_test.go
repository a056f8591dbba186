package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
)

var (
	scriptNameRe = regexp.MustCompile(`musicbridge:([^\s*]+)`)
	scriptArgRe  = regexp.MustCompile(`var arg = (.*);\n`)
)

type fakeResult struct {
	data any
	err  error
}

type fakeClick struct{ X, Y float64 }

type fakeCall struct {
	Name string
	Arg  map[string]float64
}

// fakePage answers scripts by name. Unknown scripts fail like a missing
// page API would.
type fakePage struct {
	mu      sync.Mutex
	results map[string]fakeResult
	calls   []fakeCall
	clicks  []fakeClick
}

func newFakePage() *fakePage {
	return &fakePage{results: make(map[string]fakeResult)}
}

func (f *fakePage) set(name string, data any) *fakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[name] = fakeResult{data: data}
	return f
}

func (f *fakePage) fail(name, msg string) *fakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[name] = fakeResult{err: errors.New(msg)}
	return f
}

func (f *fakePage) Eval(_ context.Context, js string, out any) error {
	m := scriptNameRe.FindStringSubmatch(js)
	if m == nil {
		return errors.New("unmarked script")
	}
	name := m[1]

	call := fakeCall{Name: name}
	if am := scriptArgRe.FindStringSubmatch(js); am != nil && am[1] != "null" {
		_ = json.Unmarshal([]byte(am[1]), &call.Arg)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	res, ok := f.results[name]
	f.mu.Unlock()

	if !ok {
		return fmt.Errorf("API_UNAVAILABLE: %s not on page", name)
	}
	if res.err != nil {
		return res.err
	}
	if out == nil || res.data == nil {
		return nil
	}
	b, err := json.Marshal(res.data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (f *fakePage) Click(_ context.Context, x, y float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, fakeClick{X: x, Y: y})
	return nil
}

func (f *fakePage) called(name string) (fakeCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.Name == name {
			return c, true
		}
	}
	return fakeCall{}, false
}

func (f *fakePage) clickLog() []fakeClick {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeClick(nil), f.clicks...)
}

func mustAdapter(t interface{ Fatalf(string, ...any) }, name string, page Page) Adapter {
	a, err := For(name, page)
	if err != nil {
		t.Fatalf("For(%q) = %v", name, err)
	}
	return a
}
