package driver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/irctrakz/wgnt/pkg/wgcfg"
)

// Errors the fake session reports, standing in for the native error codes a
// real driver would return.
var (
	errFakeNotFound  = errors.New("fake driver: adapter not found")
	errFakeCollision = errors.New("fake driver: adapter name already in use")
)

// fakeAdapter is one adapter in the fake driver's pool namespace. It persists
// across CloseAdapter, the way a real adapter survives a handle close, and
// disappears on DeleteAdapter.
type fakeAdapter struct {
	pool   string
	name   string
	luid   LUID
	guid   GUID
	up     bool
	config []byte
}

// fakeSession is an in-memory Session so lifecycle tests run without the
// driver or elevated privileges.
type fakeSession struct {
	mu         sync.Mutex
	nextLUID   LUID
	nextHandle AdapterHandle
	pool       map[string]*fakeAdapter        // pool/name -> adapter
	open       map[AdapterHandle]*fakeAdapter // live handles
	sink       LogSink

	rebootOnCreate bool
	rebootOnDelete bool
	version        DriverVersion

	// volatileConfig makes GetConfiguration report an ever-growing required
	// size, simulating a reconfiguration storm.
	volatileConfig bool

	freeCalls   int
	deleteCalls int
	stateCalls  []bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		nextLUID:   0x100,
		nextHandle: 1,
		pool:       make(map[string]*fakeAdapter),
		open:       make(map[AdapterHandle]*fakeAdapter),
		version:    DriverVersion(7<<16 | 4),
	}
}

func poolKey(pool, name string) string { return pool + "/" + name }

func (s *fakeSession) CreateAdapter(pool, name string, requestedGUID *GUID) (AdapterHandle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := poolKey(pool, name)
	if _, exists := s.pool[key]; exists {
		return 0, false, errFakeCollision
	}
	s.nextLUID++
	a := &fakeAdapter{pool: pool, name: name, luid: s.nextLUID}
	// A fresh adapter reports an empty tunnel, as the real driver does.
	a.config, _ = (&wgcfg.Config{}).Encode()
	if requestedGUID != nil {
		a.guid = *requestedGUID
	} else {
		a.guid = GUID{Data1: uint32(s.nextLUID)}
	}
	s.pool[key] = a
	handle := s.nextHandle
	s.nextHandle++
	s.open[handle] = a
	return handle, s.rebootOnCreate, nil
}

func (s *fakeSession) OpenAdapter(pool, name string) (AdapterHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, exists := s.pool[poolKey(pool, name)]
	if !exists {
		return 0, errFakeNotFound
	}
	handle := s.nextHandle
	s.nextHandle++
	s.open[handle] = a
	return handle, nil
}

func (s *fakeSession) CloseAdapter(handle AdapterHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freeCalls++
	delete(s.open, handle)
}

func (s *fakeSession) DeleteAdapter(handle AdapterHandle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, exists := s.open[handle]
	if !exists {
		return false, errFakeNotFound
	}
	s.deleteCalls++
	delete(s.pool, poolKey(a.pool, a.name))
	return s.rebootOnDelete, nil
}

func (s *fakeSession) AdapterLUID(handle AdapterHandle) LUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, exists := s.open[handle]; exists {
		return a.luid
	}
	return 0
}

func (s *fakeSession) AdapterGUID(handle AdapterHandle) (GUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, exists := s.open[handle]
	if !exists {
		return GUID{}, errFakeNotFound
	}
	return a.guid, nil
}

func (s *fakeSession) SetConfiguration(handle AdapterHandle, config []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, exists := s.open[handle]
	if !exists {
		return errFakeNotFound
	}
	a.config = append([]byte(nil), config...)
	return nil
}

func (s *fakeSession) GetConfiguration(handle AdapterHandle, buf []byte) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.volatileConfig {
		return uint32(len(buf) + 1), ErrInsufficientBuffer
	}
	a, exists := s.open[handle]
	if !exists {
		return 0, errFakeNotFound
	}
	if len(a.config) > len(buf) {
		return uint32(len(a.config)), ErrInsufficientBuffer
	}
	copy(buf, a.config)
	return uint32(len(a.config)), nil
}

func (s *fakeSession) SetAdapterState(handle AdapterHandle, up bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, exists := s.open[handle]
	if !exists {
		return errFakeNotFound
	}
	a.up = up
	s.stateCalls = append(s.stateCalls, up)
	return nil
}

func (s *fakeSession) RunningDriverVersion() (DriverVersion, error) {
	if s.version == 0 {
		return 0, ErrDriverNotInstalled
	}
	return s.version, nil
}

func (s *fakeSession) SetLoggerCallback(sink LogSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
	return nil
}

// emitLog plays the role of the native library's logging thread: it invokes
// the process-wide dispatch path only while a callback is registered.
func (s *fakeSession) emitLog(level uint32, timestamp uint64, format string, args ...interface{}) {
	s.mu.Lock()
	registered := s.sink != nil
	s.mu.Unlock()
	if registered {
		logRegistry.dispatch(level, timestamp, fmt.Sprintf(format, args...))
	}
}
