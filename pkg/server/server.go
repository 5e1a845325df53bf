package server

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ashen-labs/luamod/pkg/command"
	"github.com/ashen-labs/luamod/pkg/events"
	"github.com/ashen-labs/luamod/pkg/player"
	"github.com/ashen-labs/luamod/pkg/routine"
	"github.com/ashen-labs/luamod/pkg/script"
)

// Server wires the command engine, the Lua host, the player pool, the
// routine scheduler and the stores into one dispatch loop. All engine and
// VM access is serialized through s.mu; the tick goroutine and every HTTP
// or websocket handler funnels through Dispatch.
type Server struct {
	cfg      *Config
	accounts *AccountStore
	audit    *AuditLog
	metrics  *Metrics

	mgr   *command.Manager
	sched *routine.Scheduler
	bus   *events.Bus
	pool  *player.Pool

	mu      sync.Mutex
	host    *script.Host
	invoker int32 // player being dispatched, for the error sink
	lastErr command.ErrCode

	transMu   sync.Mutex
	transient map[int32]int // RunAs refcounts for pool slots without a session

	stop chan struct{}
	done chan struct{}
}

// New builds a server around the given stores. Call LoadScripts and Start
// afterwards.
func New(cfg *Config, accounts *AccountStore, audit *AuditLog) *Server {
	s := &Server{
		cfg:       cfg,
		accounts:  accounts,
		audit:     audit,
		mgr:       command.New(),
		sched:     routine.NewScheduler(),
		bus:       events.NewBus(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		transient: make(map[int32]int),
	}
	s.pool = player.NewPool(cfg.MaxClients, s.bus)

	s.mgr.SetResolver(command.ResolverFunc(func(id int32) (command.Invoker, bool) {
		pl, ok := s.pool.Get(id)
		if !ok {
			return nil, false
		}
		return pl, true
	}))
	s.mgr.SetOnError(func(code command.ErrCode, msg string, ctx any) {
		s.lastErr = code
		log.Printf("CMD: [%s] %s (%v)", code, msg, ctx)
		if s.metrics != nil {
			s.metrics.ObserveEngineError(code.String())
		}
		s.bus.Emit(events.Event{
			Type:   events.EvDispatchError,
			Player: s.invoker,
			Source: s.invoker,
			Code:   int(code),
			Text:   msg,
		})
	})
	s.sched.SetOnError(func(tag string, err error) {
		log.Printf("ROUTINE: [%s] %v", tag, err)
		s.bus.Emit(events.Event{
			Type:   events.EvRoutineError,
			Player: events.Nobody,
			Text:   fmt.Sprintf("%s: %v", tag, err),
		})
	})

	s.host = script.NewHost(s.mgr, s.sched, s.pool)
	if cfg.Metrics {
		s.metrics = NewMetrics(s, time.Now())
	}
	return s
}

// Config returns the active configuration.
func (s *Server) Config() *Config { return s.cfg }

// Manager returns the command engine.
func (s *Server) Manager() *command.Manager { return s.mgr }

// Scheduler returns the routine scheduler.
func (s *Server) Scheduler() *routine.Scheduler { return s.sched }

// Bus returns the event bus.
func (s *Server) Bus() *events.Bus { return s.bus }

// Pool returns the player pool.
func (s *Server) Pool() *player.Pool { return s.pool }

// Accounts returns the account store.
func (s *Server) Accounts() *AccountStore { return s.accounts }

// Audit returns the dispatch audit log, which may be nil.
func (s *Server) Audit() *AuditLog { return s.audit }

// Metrics returns the metrics collector, nil when disabled.
func (s *Server) Metrics() *Metrics { return s.metrics }

// LoadScripts runs every script in the configured directory.
func (s *Server) LoadScripts() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host.LoadDir(s.cfg.ScriptsDir)
}

// Reload tears the VM down and rebuilds it from the script directory.
// Every command and routine registered by the old VM is released.
func (s *Server) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.Printf("SCRIPT: reloading from %s", s.cfg.ScriptsDir)
	s.host.Close()
	s.host = script.NewHost(s.mgr, s.sched, s.pool)
	return s.host.LoadDir(s.cfg.ScriptsDir)
}

// commandWord extracts the leading command name from a dispatch line.
func commandWord(line string) string {
	line = strings.TrimSpace(line)
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return line[:i]
	}
	return line
}

// Dispatch runs one command line for a connected player, applying the
// suspension gates, then feeds the audit log, metrics and event bus.
func (s *Server) Dispatch(pl *player.Player, line string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatchLocked(pl, line)
}

func (s *Server) dispatchLocked(pl *player.Player, line string) int {
	name := commandWord(line)

	if pl.Suspended() {
		pl.Send("Your access is suspended.")
		s.record(pl, name, line, -1, 0, 0, "suspended")
		return -1
	}
	if cmd := s.mgr.Find(name); cmd != nil && cmd.Suspended() {
		pl.Send(fmt.Sprintf("The command '%s' is suspended.", name))
		s.record(pl, name, line, -1, 0, 0, "suspended")
		return -1
	}

	s.invoker = pl.ID()
	s.lastErr = command.ErrUnknown
	start := time.Now()
	result := s.mgr.Run(pl.ID(), line)
	dur := time.Since(start)
	code := s.lastErr
	s.invoker = 0

	s.record(pl, name, line, result, code, dur, outcome(result, code))
	return result
}

func (s *Server) record(pl *player.Player, name, raw string, result int, code command.ErrCode, dur time.Duration, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveDispatch(outcome, dur)
	}
	if s.audit == nil {
		return
	}
	err := s.audit.Record(AuditEntry{
		Time:     time.Now(),
		Invoker:  pl.ID(),
		Name:     pl.Name(),
		Command:  name,
		Raw:      raw,
		Result:   result,
		ErrCode:  int(code),
		Duration: dur,
	})
	if err != nil {
		log.Printf("AUDIT: %v", err)
	}
}

// outcome buckets a dispatch for metrics and the audit trail.
func outcome(result int, code command.ErrCode) string {
	if result > 0 {
		return "ok"
	}
	if result == 0 {
		return "aborted"
	}
	switch code {
	case command.ErrInsufficientAuth:
		return "denied"
	case command.ErrUnknownCommand:
		return "unknown"
	case command.ErrEmptyCommand, command.ErrInvalidCommand:
		return "invalid"
	case command.ErrSyntaxError, command.ErrBufferOverflow,
		command.ErrIncompleteArgs, command.ErrExtraneousArgs, command.ErrUnsupportedArg:
		return "rejected"
	default:
		return "failed"
	}
}

// Start launches the tick loop: routine processing, subscriber cleanup and
// script reload signals. It returns immediately.
func (s *Server) Start() {
	var reload <-chan string
	if s.cfg.WatchScripts {
		ch, err := script.Watch(s.cfg.ScriptsDir, s.stop)
		if err != nil {
			log.Printf("SCRIPT: watcher disabled: %v", err)
		} else {
			reload = ch
		}
	}

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(time.Duration(s.cfg.TickMillis) * time.Millisecond)
		defer ticker.Stop()
		cleanup := 0
		for {
			select {
			case now := <-ticker.C:
				s.mu.Lock()
				s.sched.Process(now)
				s.mu.Unlock()
				if cleanup++; cleanup >= 100 {
					cleanup = 0
					s.bus.Cleanup()
				}
			case <-reload:
				if err := s.Reload(); err != nil {
					log.Printf("SCRIPT: reload failed: %v", err)
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the tick loop and waits for it to exit.
func (s *Server) Stop() {
	close(s.stop)
	<-s.done
}

// Session opens a pool slot for an authenticated account. Duplicate logins
// reuse the existing slot, and a slot held transiently by RunAs is promoted
// to a full session so it outlives the run that created it.
func (s *Server) Session(claims *Claims) (*player.Player, error) {
	s.transMu.Lock()
	defer s.transMu.Unlock()
	if pl, ok := s.pool.Get(claims.PlayerID); ok {
		delete(s.transient, claims.PlayerID)
		return pl, nil
	}
	return s.pool.Connect(claims.PlayerID, claims.PlayerName, claims.Authority)
}

// RunAs dispatches one line for an authenticated account and captures the
// output it produced. Accounts without an open session get a transient pool
// slot for the duration of the call; overlapping runs for the same account
// share the slot and the last one out disconnects it.
func (s *Server) RunAs(claims *Claims, line string) (int, []string, error) {
	pl, err := s.acquireRun(claims)
	if err != nil {
		return 0, nil, err
	}

	capture := &lineCapture{}
	s.bus.Subscribe(pl.ID(), capture)

	result := s.Dispatch(pl, line)

	s.bus.Unsubscribe(pl.ID(), capture)
	s.releaseRun(pl.ID())
	return result, capture.lines, nil
}

// acquireRun finds or creates the pool slot backing a RunAs call. Transient
// slots are refcounted so concurrent runs cannot pull the player out from
// under each other.
func (s *Server) acquireRun(claims *Claims) (*player.Player, error) {
	s.transMu.Lock()
	defer s.transMu.Unlock()
	if pl, ok := s.pool.Get(claims.PlayerID); ok {
		if n, transient := s.transient[claims.PlayerID]; transient {
			s.transient[claims.PlayerID] = n + 1
		}
		return pl, nil
	}
	pl, err := s.pool.Connect(claims.PlayerID, claims.PlayerName, claims.Authority)
	if err != nil {
		return nil, err
	}
	s.transient[claims.PlayerID] = 1
	return pl, nil
}

// releaseRun drops one reference on a transient slot, disconnecting the
// player once the last run finishes. Session-owned slots are left alone.
func (s *Server) releaseRun(id int32) {
	s.transMu.Lock()
	defer s.transMu.Unlock()
	n, ok := s.transient[id]
	if !ok {
		return
	}
	if n > 1 {
		s.transient[id] = n - 1
		return
	}
	delete(s.transient, id)
	s.pool.Disconnect(id)
}

// lineCapture buffers output events for one synchronous dispatch.
type lineCapture struct {
	lines []string
}

func (c *lineCapture) Receive(ev events.Event) {
	if ev.Type == events.EvOutput || ev.Type == events.EvDispatchError {
		c.lines = append(c.lines, ev.Text)
	}
}

func (c *lineCapture) Closed() bool { return false }
