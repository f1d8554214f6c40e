// Package locker holds an advisory lock over a device's HTTP routes.
// While locked, requests that would change the device are bounced with
// 423 Locked; reads always pass.
package locker

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labcam/chameleon/generichttp"
	"github.com/sirupsen/logrus"
)

// LockPath is the route the lock is served on
const LockPath = "/lock"

// State is the lock as served on GET /lock
type State struct {
	Locked bool      `json:"bool"`
	Owner  string    `json:"owner,omitempty"`
	Since  time.Time `json:"since,omitempty"`
}

// Locker is an advisory lock with an owner
type Locker struct {
	mu    sync.Mutex
	state State

	// Exempt are path suffixes that stay reachable while locked
	Exempt []string

	// Log receives lock changes
	Log logrus.FieldLogger

	now func() time.Time
}

// New returns an unlocked Locker which leaves its own route reachable
func New() *Locker {
	return &Locker{
		Exempt: []string{LockPath},
		Log:    logrus.StandardLogger(),
		now:    time.Now,
	}
}

// Inject adds GET and POST /lock to a route table
func Inject(other generichttp.HTTPer, l *Locker) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: LockPath}] = l.HTTPGet
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: LockPath}] = l.HTTPSet
}

// Lock takes the lock for owner.  Locking again changes the owner.
func (l *Locker) Lock(owner string) {
	l.mu.Lock()
	l.state = State{Locked: true, Owner: owner, Since: l.now()}
	l.mu.Unlock()
	l.Log.WithField("owner", owner).Info("device locked")
}

// Unlock releases the lock
func (l *Locker) Unlock() {
	l.mu.Lock()
	prev := l.state
	l.state = State{}
	l.mu.Unlock()
	if prev.Locked {
		l.Log.WithField("owner", prev.Owner).Info("device unlocked")
	}
}

// Locked returns true if the lock is held
func (l *Locker) Locked() bool {
	return l.State().Locked
}

// State returns a snapshot of the lock
func (l *Locker) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Locker) exempt(r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	for _, suffix := range l.Exempt {
		if strings.HasSuffix(strings.TrimSuffix(r.URL.Path, "/"), suffix) {
			return true
		}
	}
	return false
}

// Check is middleware which bounces non-exempt requests while locked
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.exempt(r) {
			if st := l.State(); st.Locked {
				msg := fmt.Sprintf("device is locked by %s since %s", st.Owner, st.Since.Format(time.RFC3339))
				http.Error(w, msg, http.StatusLocked)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// HTTPSet locks or unlocks from {"bool": true, "owner": "name"}.
// The owner defaults to the client's address.
func (l *Locker) HTTPSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Bool  bool   `json:"bool"`
		Owner string `json:"owner"`
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !req.Bool {
		l.Unlock()
		w.WriteHeader(http.StatusOK)
		return
	}
	if req.Owner == "" {
		req.Owner = r.RemoteAddr
	}
	l.Lock(req.Owner)
	w.WriteHeader(http.StatusOK)
}

// HTTPGet replies with the lock state
func (l *Locker) HTTPGet(w http.ResponseWriter, r *http.Request) {
	generichttp.Reply(w, l.State())
}
