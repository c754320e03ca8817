package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// fakePage is an in-memory EntityPage keyed by record name.
type fakePage struct {
	mu sync.Mutex

	records map[string]map[string]string

	createErr  map[string]error
	updateErr  map[string]error
	deleteErr  error
	deleteFail int // number of leading delete calls that fail
	existsErr  error
	openErr    error
	backErr    error
	vanishOn   int // delete call after which the record disappears despite failing
	onCreate   func(name string)

	calls []string
}

func newFakePage(existing ...string) *fakePage {
	p := &fakePage{
		records:   make(map[string]map[string]string),
		createErr: make(map[string]error),
		updateErr: make(map[string]error),
	}
	for _, name := range existing {
		p.records[name] = map[string]string{FieldName: name}
	}
	return p
}

func (p *fakePage) record(call string) {
	p.calls = append(p.calls, call)
}

func (p *fakePage) count(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (p *fakePage) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("open")
	return p.openErr
}

func (p *fakePage) Exists(ctx context.Context, key Key) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("exists:" + key.Name)
	if p.existsErr != nil {
		return false, p.existsErr
	}
	rec, ok := p.records[key.Name]
	if !ok {
		return false, nil
	}
	if key.Code != "" && rec[FieldCode] != key.Code {
		return false, nil
	}
	return true, nil
}

func (p *fakePage) Create(ctx context.Context, fields map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := fields[FieldName]
	p.record("create:" + name)
	if err := p.createErr[name]; err != nil {
		return err
	}
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	p.records[name] = copied
	if p.onCreate != nil {
		p.onCreate(name)
	}
	return nil
}

func (p *fakePage) Update(ctx context.Context, key Key, values map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("update:" + key.Name)
	if err := p.updateErr[key.Name]; err != nil {
		return err
	}
	rec := p.records[key.Name]
	for k, v := range values {
		rec[k] = v
	}
	if newName, ok := values[FieldName]; ok && newName != key.Name {
		delete(p.records, key.Name)
		p.records[newName] = rec
	}
	return nil
}

func (p *fakePage) Delete(ctx context.Context, key Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("delete:" + key.Name)
	n := 0
	for _, c := range p.calls {
		if len(c) > 7 && c[:7] == "delete:" {
			n++
		}
	}
	if p.vanishOn > 0 && n == p.vanishOn {
		delete(p.records, key.Name)
		return errors.New("confirmation toast not shown")
	}
	if p.deleteErr != nil {
		return p.deleteErr
	}
	if n <= p.deleteFail {
		return fmt.Errorf("delete attempt %d failed", n)
	}
	delete(p.records, key.Name)
	return nil
}

func (p *fakePage) Back(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("back")
	return p.backErr
}

func (p *fakePage) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("reload")
	return nil
}

// recordingReporter captures reported tallies.
type recordingReporter struct {
	tallies []*Tally
	ctxErrs []error
	err     error
}

func (r *recordingReporter) Report(ctx context.Context, t *Tally) error {
	r.tallies = append(r.tallies, t)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return r.err
}
