package asyncdb

import "sync"

// Deferred observes the outcome of one asynchronous operation.
//
// Exactly one of the success and failure callbacks runs, at most once, and
// the complete callback runs once afterwards. Registering a callback again
// replaces the previous one. Callbacks run on the connection's reactor.
//
// A Deferred with neither a success nor a failure callback lets the
// connection skip building the result, and for queries the round-trip that
// fetches it; only the complete callback fires.
type Deferred struct {
	mu        sync.Mutex
	onSuccess func(*Result)
	onFailure func(error)
	onDone    func()
	fulfilled bool
}

func newDeferred() *Deferred {
	return &Deferred{}
}

// OnSuccess registers the callback that receives the result.
func (d *Deferred) OnSuccess(callback func(result *Result)) *Deferred {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.fulfilled {
		d.onSuccess = callback
	}
	return d
}

// OnFailure registers the callback that receives the error.
func (d *Deferred) OnFailure(callback func(err error)) *Deferred {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.fulfilled {
		d.onFailure = callback
	}
	return d
}

// OnComplete registers the callback run after the operation finished,
// successfully or not.
func (d *Deferred) OnComplete(callback func()) *Deferred {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.fulfilled {
		d.onDone = callback
	}
	return d
}

// requireStatus reports whether anyone observes the outcome.
func (d *Deferred) requireStatus() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.onSuccess != nil || d.onFailure != nil
}

// take marks the deferred fulfilled and hands out its callbacks.
func (d *Deferred) take() (func(*Result), func(error), func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fulfilled {
		panic("asyncdb: deferred fulfilled twice")
	}
	d.fulfilled = true
	success, failure, done := d.onSuccess, d.onFailure, d.onDone
	d.onSuccess, d.onFailure, d.onDone = nil, nil, nil
	return success, failure, done
}

func (d *Deferred) success(result *Result) {
	success, _, done := d.take()
	if success != nil {
		success(result)
	}
	if done != nil {
		done()
	}
}

func (d *Deferred) failure(err error) {
	_, failure, done := d.take()
	if failure != nil {
		failure(err)
	}
	if done != nil {
		done()
	}
}

func (d *Deferred) complete() {
	_, _, done := d.take()
	if done != nil {
		done()
	}
}
